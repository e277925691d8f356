package template

import (
	"context"
	"fmt"
	"log"

	"github.com/autoformfill/formfill/internal/configfile"
)

// Matcher derives a template from an image alone, without an explicit
// template file. Implementations are best effort: any error is treated
// as "matching unavailable for this input" and never aborts the run.
type Matcher interface {
	Match(ctx context.Context, imagePath string) (map[string]any, error)
}

// LoadFunc loads a structured file into a generic mapping. It exists so
// tests can observe or replace the file access.
type LoadFunc func(path string) (map[string]any, error)

// Resolver decides, for a given input image, whether to use automatic
// template matching or the explicit template path, and returns a
// validated template.
type Resolver struct {
	// Matcher is the automatic-matching capability. Nil means the
	// capability is absent and the explicit path is used directly.
	Matcher Matcher
	// Load defaults to configfile.Load.
	Load LoadFunc
	// Logger receives the matching-failure warning. Defaults to the
	// standard logger.
	Logger *log.Logger
}

// Resolve acquires the working template. Matching is attempted first
// when a Matcher is present; on success the explicit path is never
// consulted. A matching failure is recoverable and falls back to the
// explicit path. In either branch the result must pass validation; a
// validation failure here is fatal and distinct from a matching failure.
// The returned bool reports whether the template came from the matcher.
func (r *Resolver) Resolve(ctx context.Context, imagePath, templatePath string) (*Template, bool, error) {
	load := r.Load
	if load == nil {
		load = configfile.Load
	}

	var (
		raw     map[string]any
		matched bool
	)

	if r.Matcher != nil {
		candidate, err := r.Matcher.Match(ctx, imagePath)
		if err == nil {
			raw = candidate
			matched = true
		} else {
			r.logf("automatic template matching failed: %v", err)
			r.logf("loading template from %s", templatePath)
		}
	}

	if raw == nil {
		loaded, err := load(templatePath)
		if err != nil {
			return nil, false, fmt.Errorf("load template %s: %w", templatePath, err)
		}
		raw = loaded
	}

	if err := Validate(raw); err != nil {
		return nil, matched, err
	}

	return Decode(raw), matched, nil
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
