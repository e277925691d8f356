package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	// Register decoders for the formats a scanned form arrives in.
	_ "image/jpeg"

	"github.com/otiai10/gosseract/v2"

	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/template"
)

// OCRExtractor recognizes field values by cropping each field's bounding
// box out of the input image and running it through Tesseract.
type OCRExtractor struct {
	opts Options

	// recognize runs OCR over one encoded region. Swappable in tests.
	recognize func(ctx context.Context, region []byte, opts Options) (string, error)
}

// NewOCRExtractor constructs a Tesseract-backed extractor.
func NewOCRExtractor(opts Options) *OCRExtractor {
	return &OCRExtractor{opts: opts, recognize: tesseractRecognize}
}

// Extract decodes the image once, then recognizes each template field's
// region in template order. Any engine error aborts the whole call.
func (e *OCRExtractor) Extract(ctx context.Context, imagePath string, tpl *template.Template) (formdata.ExtractedData, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", imagePath, err)
	}

	extracted := make(formdata.ExtractedData)
	for _, field := range tpl.Fields {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rect, err := field.Rect()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}

		region, err := cropRegion(img, rect)
		if err != nil {
			if e.opts.Debug {
				e.opts.logf("field %q: region outside image, skipping: %v", field.Name, err)
			}
			continue
		}

		text, err := e.recognize(ctx, region, e.opts)
		if err != nil {
			return nil, fmt.Errorf("recognize field %q: %w", field.Name, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			if e.opts.Debug {
				e.opts.logf("field %q: no text recognized", field.Name)
			}
			continue
		}

		if e.opts.Debug {
			e.opts.logf("field %q: %q", field.Name, text)
		}
		extracted[field.Name] = text
	}

	return extracted, nil
}

// cropRegion cuts the field's bounding box out of the decoded image and
// re-encodes it as PNG for the engine.
func cropRegion(img image.Image, rect image.Rectangle) ([]byte, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	return buf.Bytes(), nil
}

// tesseractRecognize runs one region through a fresh gosseract client.
func tesseractRecognize(_ context.Context, region []byte, opts Options) (string, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(region); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(opts.Languages) > 0 {
		if err := c.SetLanguage(opts.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(opts.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
