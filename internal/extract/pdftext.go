package extract

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/autoformfill/formfill/internal/formdata"
	"github.com/autoformfill/formfill/internal/template"
)

// PDFTextExtractor reads a PDF input's native text layer and assigns
// positioned words to template fields by bounding-box containment.
// Templates calibrated for PDF inputs declare their bboxes in the page's
// point coordinate space.
type PDFTextExtractor struct {
	opts Options

	// readWords collects positioned words from the document. Swappable
	// in tests.
	readWords func(path string) ([]positionedWord, error)
}

type positionedWord struct {
	Text string
	X    float64
	Y    float64
}

// NewPDFTextExtractor constructs a text-layer extractor for PDF inputs.
func NewPDFTextExtractor(opts Options) *PDFTextExtractor {
	return &PDFTextExtractor{opts: opts, readWords: readPDFWords}
}

// Extract assigns each positioned word to the first field whose region
// contains its anchor point, then joins a field's words left to right.
func (e *PDFTextExtractor) Extract(ctx context.Context, imagePath string, tpl *template.Template) (formdata.ExtractedData, error) {
	words, err := e.readWords(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read PDF text layer: %w", err)
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

		var hits []positionedWord
		for _, w := range words {
			if containsPoint(rect, w.X, w.Y) {
				hits = append(hits, w)
			}
		}
		if len(hits) == 0 {
			if e.opts.Debug {
				e.opts.logf("field %q: no text in region", field.Name)
			}
			continue
		}

		sort.SliceStable(hits, func(i, j int) bool { return hits[i].X < hits[j].X })
		parts := make([]string, 0, len(hits))
		for _, w := range hits {
			parts = append(parts, w.Text)
		}
		value := strings.TrimSpace(strings.Join(parts, " "))
		if value == "" {
			continue
		}

		if e.opts.Debug {
			e.opts.logf("field %q: %q", field.Name, value)
		}
		extracted[field.Name] = value
	}

	return extracted, nil
}

func containsPoint(rect image.Rectangle, x, y float64) bool {
	return x >= float64(rect.Min.X) && x < float64(rect.Max.X) &&
		y >= float64(rect.Min.Y) && y < float64(rect.Max.Y)
}

// readPDFWords walks every page's content and returns each text run with
// its position. Font size stands in for text height, which is all the
// containment test needs.
func readPDFWords(path string) ([]positionedWord, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var words []positionedWord
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, text := range content.Text {
			if strings.TrimSpace(text.S) == "" {
				continue
			}
			words = append(words, positionedWord{Text: text.S, X: text.X, Y: text.Y})
		}
	}

	return words, nil
}
