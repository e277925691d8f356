// Package pipeline sequences the form-fill workflow: input validation,
// template acquisition, extraction, override processing, fill, and
// save. Each stage is terminal on failure; a failed run reports the
// stage and the underlying cause and produces no partial output.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/autoformfill/formfill/internal/configfile"
	"github.com/autoformfill/formfill/internal/extract"
	"github.com/autoformfill/formfill/internal/fill"
	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/save"
	"github.com/autoformfill/formfill/internal/template"
)

const (
	outputDirPerm   = 0o750
	displayValueMax = 50
)

// Extractor produces field values from the input image.
type Extractor interface {
	Extract(ctx context.Context, imagePath string, tpl *template.Template) (formdata.ExtractedData, error)
}

// Filler renders merged values onto the input image and returns the
// filled artifact.
type Filler interface {
	Fill(ctx context.Context, imagePath string, tpl *template.Template, data formdata.MergedData) (image.Image, error)
}

// Saver persists the filled artifact. The pipeline guarantees the
// output path's parent directory exists before calling it.
type Saver interface {
	Save(artifact image.Image, outputPath string) error
}

// Option customises the pipeline configuration.
type Option func(*Pipeline)

// WithMatcher attaches the automatic template matching capability. A
// nil matcher leaves the capability absent.
func WithMatcher(m template.Matcher) Option {
	return func(p *Pipeline) { p.matcher = m }
}

// WithExtractor injects a fixed extraction collaborator. When absent
// the pipeline picks one per input file extension.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithFiller injects the fill collaborator.
func WithFiller(f Filler) Option {
	return func(p *Pipeline) { p.filler = f }
}

// WithSaver injects the save collaborator.
func WithSaver(s Saver) Option {
	return func(p *Pipeline) { p.saver = s }
}

// WithLoader replaces the structured-file loader used for templates and
// overrides.
func WithLoader(load template.LoadFunc) Option {
	return func(p *Pipeline) { p.load = load }
}

// WithLogger routes progress reporting. Reporting is a side effect
// only; it never influences control flow.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithDebug forwards verbose diagnostics to the extraction collaborator.
func WithDebug(debug bool) Option {
	return func(p *Pipeline) { p.debug = debug }
}

// WithLanguages sets OCR language hints.
func WithLanguages(langs ...string) Option {
	return func(p *Pipeline) { p.languages = append([]string(nil), langs...) }
}

// Pipeline owns one run's transient state and the injected
// collaborators.
type Pipeline struct {
	matcher   template.Matcher
	extractor Extractor
	filler    Filler
	saver     Saver
	load      template.LoadFunc
	logger    *log.Logger
	debug     bool
	languages []string
}

// New constructs a pipeline, applying defaults for any collaborator not
// injected.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.load == nil {
		p.load = configfile.Load
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.saver == nil {
		p.saver = save.NewSaver()
	}
	if p.filler == nil {
		filler, err := fill.NewFiller(fill.Options{Debug: p.debug, Logger: p.logger})
		if err != nil {
			return nil, fmt.Errorf("initialise filler: %w", err)
		}
		p.filler = filler
	}

	return p, nil
}

// Request carries the paths for one run. DataPath is optional.
type Request struct {
	ImagePath    string
	TemplatePath string
	OutputPath   string
	DataPath     string
}

// Result summarises a successful run.
type Result struct {
	RunID          string
	ImagePath      string
	TemplatePath   string
	OutputPath     string
	Matched        bool
	TemplateFields int
	FieldCount     int
	OverrideCount  int
	Data           formdata.MergedData
}

// Run executes the six stages in order. The first failing stage aborts
// the run with a StageError identifying the stage and cause; a
// cancelled context aborts with ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	p.logger.Printf("run %s: starting form fill workflow", runID)

	// Stage 1: input validation.
	p.logger.Printf("run %s: validating input files", runID)
	if err := p.validateInputs(req); err != nil {
		return nil, err
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 2: template acquisition.
	p.logger.Printf("run %s: acquiring template", runID)
	resolver := &template.Resolver{Matcher: p.matcher, Load: p.load, Logger: p.logger}
	tpl, matched, err := resolver.Resolve(ctx, req.ImagePath, req.TemplatePath)
	if err != nil {
		return nil, stageErr(StageTemplate, err)
	}
	p.logger.Printf("run %s: template ready with %d fields (matched=%t)", runID, len(tpl.Fields), matched)
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 3: extraction.
	p.logger.Printf("run %s: extracting data from image", runID)
	extractor := p.extractor
	if extractor == nil {
		extractor = extract.ForPath(req.ImagePath, extract.Options{
			Debug:     p.debug,
			Languages: p.languages,
			Logger:    p.logger,
		})
	}
	extracted, err := extractor.Extract(ctx, req.ImagePath, tpl)
	if err != nil {
		return nil, stageErr(StageExtraction, err)
	}
	p.logger.Printf("run %s: extraction found %d fields", runID, len(extracted))
	for name, value := range extracted {
		p.logger.Printf("run %s:   %s: %q", runID, name, truncate(value, displayValueMax))
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 4: override processing and merge.
	var override formdata.OverrideData
	if req.DataPath != "" {
		p.logger.Printf("run %s: loading override data", runID)
		override, err = formdata.LoadOverrides(req.DataPath)
		if err != nil {
			return nil, stageErr(StageOverrides, err)
		}
		p.logger.Printf("run %s: loaded %d override values", runID, len(override))
	} else {
		p.logger.Printf("run %s: no override data provided", runID)
	}
	merged := formdata.Merge(extracted, override)
	p.logger.Printf("run %s: final dataset has %d fields", runID, len(merged))
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 5: fill.
	p.logger.Printf("run %s: filling form", runID)
	artifact, err := p.filler.Fill(ctx, req.ImagePath, tpl, merged)
	if err != nil {
		return nil, stageErr(StageFill, err)
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 6: save.
	p.logger.Printf("run %s: saving filled form", runID)
	if dir := filepath.Dir(req.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, outputDirPerm); err != nil {
			return nil, stageErr(StageSave, fmt.Errorf("create output directory: %w", err))
		}
	}
	if err := p.saver.Save(artifact, req.OutputPath); err != nil {
		return nil, stageErr(StageSave, err)
	}
	p.logger.Printf("run %s: filled form saved to %s", runID, req.OutputPath)

	return &Result{
		RunID:          runID,
		ImagePath:      req.ImagePath,
		TemplatePath:   req.TemplatePath,
		OutputPath:     req.OutputPath,
		Matched:        matched,
		TemplateFields: len(tpl.Fields),
		FieldCount:     len(merged),
		OverrideCount:  len(override),
		Data:           merged,
	}, nil
}

// validateInputs checks that every supplied path references an existing
// file. No collaborator runs before this passes.
func (p *Pipeline) validateInputs(req Request) error {
	checks := []struct {
		role     string
		path     string
		required bool
	}{
		{role: "image", path: req.ImagePath, required: true},
		{role: "template", path: req.TemplatePath, required: true},
		{role: "data", path: req.DataPath, required: false},
	}

	for _, c := range checks {
		if c.path == "" {
			if c.required {
				return &StageError{Stage: StageInputValidation, Role: c.role, Err: fmt.Errorf("path not set")}
			}
			continue
		}
		if _, err := os.Stat(c.path); err != nil {
			return &StageError{Stage: StageInputValidation, Role: c.role, Err: fmt.Errorf("file not found: %s", c.path)}
		}
	}
	return nil
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
