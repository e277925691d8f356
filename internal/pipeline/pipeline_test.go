package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/template"
)

type fakeExtractor struct {
	data  formdata.ExtractedData
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ *template.Template) (formdata.ExtractedData, error) {
	f.calls++
	return f.data, f.err
}

type fakeFiller struct {
	err   error
	calls int
	data  formdata.MergedData
}

func (f *fakeFiller) Fill(_ context.Context, _ string, _ *template.Template, data formdata.MergedData) (image.Image, error) {
	f.calls++
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

type fakeSaver struct {
	err   error
	calls int
	path  string
}

func (f *fakeSaver) Save(_ image.Image, outputPath string) error {
	f.calls++
	f.path = outputPath
	return f.err
}

type fakeMatcher struct {
	raw map[string]any
	err error
}

func (m *fakeMatcher) Match(context.Context, string) (map[string]any, error) {
	return m.raw, m.err
}

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const singleFieldTemplate = `{"fields": [{"name": "full_name", "pixel_bbox": [0, 0, 10, 10]}]}`

type fixture struct {
	req       Request
	extractor *fakeExtractor
	filler    *fakeFiller
	saver     *fakeSaver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		req: Request{
			ImagePath:    writeFile(t, dir, "form.png", "not-a-real-image"),
			TemplatePath: writeFile(t, dir, "template.json", singleFieldTemplate),
			OutputPath:   filepath.Join(dir, "out", "filled.png"),
		},
		extractor: &fakeExtractor{data: formdata.ExtractedData{"full_name": "Jane Doe"}},
		filler:    &fakeFiller{},
		saver:     &fakeSaver{},
	}
}

func (f *fixture) pipeline(t *testing.T, extra ...Option) *Pipeline {
	t.Helper()
	opts := append([]Option{
		WithExtractor(f.extractor),
		WithFiller(f.filler),
		WithSaver(f.saver),
		WithLogger(quiet()),
	}, extra...)
	p, err := New(opts...)
	require.NoError(t, err)
	return p
}

func TestRun_SuccessNoOverrides(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	result, err := p.Run(context.Background(), f.req)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Matched)
	assert.Equal(t, formdata.MergedData{"full_name": "Jane Doe"}, result.Data)
	assert.Equal(t, 1, result.FieldCount)
	assert.Equal(t, 0, result.OverrideCount)
	assert.Equal(t, f.req.OutputPath, f.saver.path)

	info, err := os.Stat(filepath.Dir(f.req.OutputPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "output parent directory is created before saving")
}

func TestRun_OverrideWins(t *testing.T) {
	f := newFixture(t)
	f.req.DataPath = writeFile(t, filepath.Dir(f.req.ImagePath), "data.json", `{"full_name": "J. Doe"}`)
	p := f.pipeline(t)

	result, err := p.Run(context.Background(), f.req)
	require.NoError(t, err)

	assert.Equal(t, formdata.MergedData{"full_name": "J. Doe"}, result.Data)
	assert.Equal(t, 1, result.OverrideCount)
	assert.Equal(t, formdata.MergedData{"full_name": "J. Doe"}, f.filler.data, "the filler receives merged data")
}

func TestRun_MissingImageAbortsBeforeCollaborators(t *testing.T) {
	f := newFixture(t)
	f.req.ImagePath = filepath.Join(t.TempDir(), "missing.png")
	p := f.pipeline(t)

	_, err := p.Run(context.Background(), f.req)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageInputValidation, se.Stage)
	assert.Equal(t, "image", se.Role)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.filler.calls)
	assert.Zero(t, f.saver.calls)
}

func TestRun_MissingDataFileOnlyWhenSupplied(t *testing.T) {
	f := newFixture(t)
	f.req.DataPath = filepath.Join(t.TempDir(), "missing.json")
	p := f.pipeline(t)

	_, err := p.Run(context.Background(), f.req)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageInputValidation, se.Stage)
	assert.Equal(t, "data", se.Role)
}

func TestRun_InvalidTemplateAbortsBeforeExtraction(t *testing.T) {
	f := newFixture(t)
	f.req.TemplatePath = writeFile(t, t.TempDir(), "template.json", `{"fields": "not-a-list"}`)
	p := f.pipeline(t)

	_, err := p.Run(context.Background(), f.req)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTemplate, se.Stage)

	var ve *template.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, template.KindFieldsNotList, ve.Kind)
	assert.Zero(t, f.extractor.calls)
}

func TestRun_MatcherSuccessSkipsExplicitTemplate(t *testing.T) {
	f := newFixture(t)
	loads := 0
	p := f.pipeline(t,
		WithMatcher(&fakeMatcher{raw: map[string]any{
			"fields": []any{map[string]any{"name": "full_name", "pixel_bbox": []any{0.0, 0.0, 10.0, 10.0}}},
		}}),
		WithLoader(func(path string) (map[string]any, error) {
			loads++
			return nil, errors.New("must not be called")
		}),
	)

	result, err := p.Run(context.Background(), f.req)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Zero(t, loads, "explicit template is never read when matching succeeds")
}

func TestRun_MatcherFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, WithMatcher(&fakeMatcher{err: errors.New("no match")}))

	result, err := p.Run(context.Background(), f.req)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestRun_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*fixture)
		wantStage Stage
	}{
		{
			name:      "extraction_failure",
			mutate:    func(f *fixture) { f.extractor.err = errors.New("ocr failed") },
			wantStage: StageExtraction,
		},
		{
			name:      "fill_failure",
			mutate:    func(f *fixture) { f.filler.err = errors.New("render failed") },
			wantStage: StageFill,
		},
		{
			name:      "save_failure",
			mutate:    func(f *fixture) { f.saver.err = errors.New("disk full") },
			wantStage: StageSave,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			p := f.pipeline(t)

			_, err := p.Run(context.Background(), f.req)
			require.Error(t, err)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantStage, se.Stage)
		})
	}
}

func TestRun_OverrideLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.req.DataPath = writeFile(t, filepath.Dir(f.req.ImagePath), "data.json", `{"broken`)
	p := f.pipeline(t)

	_, err := p.Run(context.Background(), f.req)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageOverrides, se.Stage)
	assert.Zero(t, f.filler.calls, "the run aborts before filling")
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, f.req)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, f.filler.calls)
	assert.Zero(t, f.saver.calls)
}

func TestStageErrorMessages(t *testing.T) {
	err := &StageError{Stage: StageExtraction, Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")

	err = &StageError{Stage: StageInputValidation, Role: "image", Err: errors.New("file not found")}
	assert.Contains(t, err.Error(), "INPUT_NOT_FOUND")
	assert.Contains(t, err.Error(), "image")
}

func TestStageString(t *testing.T) {
	stages := map[Stage]string{
		StageInputValidation: "input validation",
		StageTemplate:        "template acquisition",
		StageExtraction:      "extraction",
		StageOverrides:       "override processing",
		StageFill:            "fill",
		StageSave:            "save",
	}
	for stage, want := range stages {
		assert.Equal(t, want, stage.String())
	}
}
