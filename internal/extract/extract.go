// Package extract produces field values from an input document guided
// by a template. Two collaborators are provided: a Tesseract-backed OCR
// extractor for raster images and a text-layer extractor for native PDF
// inputs.
package extract

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/template"
)

// Options configures extraction behavior shared by all extractors.
type Options struct {
	// Debug enables verbose per-field diagnostics.
	Debug bool
	// Languages holds Tesseract language hints (e.g. "eng", "deu").
	Languages []string
	// DPI carries the effective dots-per-inch of the scan; zero means
	// unknown and leaves the engine default in place.
	DPI int
	// Logger receives diagnostics. Nil uses the standard logger.
	Logger *log.Logger
}

func (o Options) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Extractor produces field values from an input file. Extraction either
// fully succeeds or fails; no partial result is returned alongside an
// error. Template fields whose region yields no text are simply absent
// from the result.
type Extractor interface {
	Extract(ctx context.Context, imagePath string, tpl *template.Template) (formdata.ExtractedData, error)
}

// ForPath selects the extractor appropriate for the input file: the PDF
// text-layer extractor for .pdf inputs, OCR for everything else.
func ForPath(imagePath string, opts Options) Extractor {
	if strings.EqualFold(filepath.Ext(imagePath), ".pdf") {
		return NewPDFTextExtractor(opts)
	}
	return NewOCRExtractor(opts)
}
