// Package save persists the filled artifact. The output format follows
// the output path's extension: PNG, JPEG, or a single-page PDF.
package save

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const jpegQuality = 92

// Saver writes a filled artifact to disk. The caller guarantees the
// output path's parent directory exists.
type Saver struct{}

// NewSaver creates a saver.
func NewSaver() *Saver {
	return &Saver{}
}

// Save encodes the artifact according to the output extension.
func (s *Saver) Save(artifact image.Image, outputPath string) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".png", "":
		return savePNG(artifact, outputPath)
	case ".jpg", ".jpeg":
		return saveJPEG(artifact, outputPath)
	case ".pdf":
		return savePDF(artifact, outputPath)
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(outputPath))
	}
}

func savePNG(artifact image.Image, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, artifact); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}

func saveJPEG(artifact image.Image, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, artifact, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode JPEG: %w", err)
	}
	return nil
}

// savePDF wraps the artifact into a fresh single-page PDF sized to the
// image.
func savePDF(artifact image.Image, outputPath string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, artifact); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	imp := pdfcpu.DefaultImportConfig()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ImportImages(nil, f, []io.Reader{&buf}, imp, conf); err != nil {
		return fmt.Errorf("build PDF: %w", err)
	}
	return nil
}
