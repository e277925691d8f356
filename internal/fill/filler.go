// Package fill renders merged field values onto a copy of the form
// image at each field's declared location.
package fill

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"

	// Register decoders for the formats a scanned form arrives in.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/template"
)

const (
	// fontDPI matches the screen-resolution assumption of scanned forms.
	fontDPI = 72
	// heightRatio leaves headroom between the glyphs and the box edges.
	heightRatio = 0.7
	// ascentRatio positions the baseline inside the box. The value is
	// the typographic ascent share of the em square for common faces.
	ascentRatio = 0.718

	minFontSize = 6.0
	maxFontSize = 48.0
)

// Options configures the filler.
type Options struct {
	// Ink is the text color. The zero value renders near-black.
	Ink color.Color
	// Debug enables per-field diagnostics.
	Debug bool
	// Logger receives diagnostics. Nil uses the standard logger.
	Logger *log.Logger
}

// Filler draws field values onto the input image.
type Filler struct {
	opts Options
	face *sfnt.Font
}

// NewFiller constructs a filler rendering with the embedded Go Regular
// face.
func NewFiller(opts Options) (*Filler, error) {
	face, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	if opts.Ink == nil {
		opts.Ink = color.RGBA{A: 255, R: 16, G: 16, B: 64}
	}
	return &Filler{opts: opts, face: face}, nil
}

// Fill renders every merged value that names a template field onto a
// copy of the input image. Values without a matching field are skipped;
// fields without a value are left untouched. The input file is never
// modified.
func (f *Filler) Fill(ctx context.Context, imagePath string, tpl *template.Template, data formdata.MergedData) (image.Image, error) {
	src, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, field := range tpl.Fields {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		value, ok := data[field.Name]
		if !ok || value == "" {
			continue
		}

		rect, err := field.Rect()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		rect = rect.Intersect(dst.Bounds())
		if rect.Empty() {
			f.logf("field %q: region outside image, skipping", field.Name)
			continue
		}

		if err := f.drawValue(dst, rect, value); err != nil {
			return nil, fmt.Errorf("draw field %q: %w", field.Name, err)
		}
		if f.opts.Debug {
			f.logf("field %q: drew %q at %v", field.Name, value, rect)
		}
	}

	return dst, nil
}

// drawValue renders value inside rect, sized to the box height and
// shrunk until the rendered width fits.
func (f *Filler) drawValue(dst draw.Image, rect image.Rectangle, value string) error {
	size := float64(rect.Dy()) * heightRatio
	if size > maxFontSize {
		size = maxFontSize
	}

	if size < minFontSize {
		size = minFontSize
	}

	for {
		face, err := opentype.NewFace(f.face, &opentype.FaceOptions{
			Size:    size,
			DPI:     fontDPI,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return fmt.Errorf("build face: %w", err)
		}

		width := font.MeasureString(face, value).Ceil()
		if width > rect.Dx() && size-2 >= minFontSize {
			size -= 2
			continue
		}

		baseline := rect.Min.Y + int(size*ascentRatio)
		drawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(f.opts.Ink),
			Face: face,
			Dot:  fixed.P(rect.Min.X+1, baseline),
		}
		drawer.DrawString(value)
		return nil
	}
}

func (f *Filler) logf(format string, args ...any) {
	if f.opts.Logger != nil {
		f.opts.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}
