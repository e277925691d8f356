// Package template defines the field-location template model along with
// its structural validator and the resolution strategy that chooses
// between automatic matching and an explicit template file.
package template

import (
	"fmt"
	"image"
)

// Field is one named, located value slot within a template.
type Field struct {
	// Name identifies the value in extracted and merged data.
	Name string
	// PixelBBox locates the field in the image. Its interpretation is
	// owned by the extraction and fill collaborators; the validator only
	// checks that it is present.
	PixelBBox []int
}

// Rect interprets the bounding box as [x0, y0, x1, y1] in pixel
// coordinates. Collaborators that need a concrete region call this and
// treat failures as their own errors.
func (f Field) Rect() (image.Rectangle, error) {
	if len(f.PixelBBox) != 4 {
		return image.Rectangle{}, fmt.Errorf("field %q: pixel_bbox must have 4 entries, got %d", f.Name, len(f.PixelBBox))
	}
	return image.Rect(f.PixelBBox[0], f.PixelBBox[1], f.PixelBBox[2], f.PixelBBox[3]), nil
}

// Template is a declarative description of named fields and their
// locations on a form image. It is loaded once per run and never mutated
// after validation.
type Template struct {
	// Fields preserves the order of the template source. Order is for
	// display only; merging does not depend on it.
	Fields []Field
}

// FieldByName returns the first field with the given name.
func (t *Template) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Decode converts a validated generic template value into a Template.
// Callers must run Validate first; Decode assumes the structural shape
// holds and is lenient about value types beyond that.
func Decode(raw map[string]any) *Template {
	items, _ := asList(raw["fields"])
	tpl := &Template{Fields: make([]Field, 0, len(items))}
	for _, item := range items {
		m, _ := asMap(item)
		field := Field{Name: fmt.Sprint(m["name"])}
		if bbox, ok := asList(m["pixel_bbox"]); ok {
			for _, v := range bbox {
				if n, ok := asInt(v); ok {
					field.PixelBBox = append(field.PixelBBox, n)
				}
			}
		}
		tpl.Fields = append(tpl.Fields, field)
	}
	return tpl
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
