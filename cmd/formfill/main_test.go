package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/autoformfill/formfill/internal/config"
	"github.com/autoformfill/formfill/internal/pipeline"
)

const testVersion = "1.2.3"

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	originalStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = originalStderr }()

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		defer close(done)
		io.Copy(&buf, r)
	}()

	fn()
	w.Close()
	<-done

	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	oldVersion := version
	oldBuildTime := buildTime
	oldGitCommit := gitCommit
	version = testVersion
	buildTime = "2026-01-15_09:00:00"
	gitCommit = "abc123"
	defer func() {
		version = oldVersion
		buildTime = oldBuildTime
		gitCommit = oldGitCommit
		os.Stdout = originalStdout
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		printVersion()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done

	output := buf.String()
	for _, part := range []string{"formfill", testVersion, "abc123"} {
		if !strings.Contains(output, part) {
			t.Errorf("expected version output to contain %q, got: %s", part, output)
		}
	}
}

func TestBuildMatcher(t *testing.T) {
	cfg := &config.Config{}
	if buildMatcher(cfg) != nil {
		t.Error("expected no matcher without a template library")
	}

	cfg.TemplatesDir = t.TempDir()
	if buildMatcher(cfg) == nil {
		t.Error("expected a matcher when a template library is configured")
	}
}

func TestReportFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantPart string
	}{
		{
			name:     "cancelled",
			err:      pipeline.ErrCancelled,
			wantPart: "cancelled by user",
		},
		{
			name:     "stage_error",
			err:      &pipeline.StageError{Stage: pipeline.StageExtraction, Err: errors.New("ocr failed")},
			wantPart: "EXTRACTION_FAILED",
		},
		{
			name:     "other_error",
			err:      errors.New("unexpected"),
			wantPart: "FATAL ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureStderr(t, func() { reportFailure(tt.err) })
			if !strings.Contains(output, tt.wantPart) {
				t.Errorf("expected diagnostic to contain %q, got: %s", tt.wantPart, output)
			}
		})
	}
}
