package template

import "fmt"

// ValidationKind represents the categories of template shape violations.
type ValidationKind int

const (
	// KindMissingFieldsKey means the template has no "fields" key.
	KindMissingFieldsKey ValidationKind = iota
	// KindFieldsNotList means "fields" is present but not a list.
	KindFieldsNotList
	// KindFieldNotObject means the field at Index is not a mapping.
	KindFieldNotObject
	// KindFieldMissingName means the field at Index has no "name" key.
	KindFieldMissingName
	// KindFieldMissingBBox means the field at Index has no "pixel_bbox" key.
	KindFieldMissingBBox
)

// String returns a string representation of the ValidationKind.
func (k ValidationKind) String() string {
	switch k {
	case KindMissingFieldsKey:
		return "MISSING_FIELDS_KEY"
	case KindFieldsNotList:
		return "FIELDS_NOT_LIST"
	case KindFieldNotObject:
		return "FIELD_NOT_OBJECT"
	case KindFieldMissingName:
		return "FIELD_MISSING_NAME"
	case KindFieldMissingBBox:
		return "FIELD_MISSING_BBOX"
	default:
		return "UNKNOWN"
	}
}

// ValidationError reports the first structural violation found in a
// candidate template. Index is meaningful only for the per-field kinds.
type ValidationError struct {
	Kind  ValidationKind
	Index int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingFieldsKey:
		return fmt.Sprintf("[%s] template missing 'fields' key", e.Kind)
	case KindFieldsNotList:
		return fmt.Sprintf("[%s] template 'fields' must be a list", e.Kind)
	case KindFieldNotObject:
		return fmt.Sprintf("[%s] field %d must be an object", e.Kind, e.Index)
	case KindFieldMissingName:
		return fmt.Sprintf("[%s] field %d missing 'name' key", e.Kind, e.Index)
	case KindFieldMissingBBox:
		return fmt.Sprintf("[%s] field %d missing 'pixel_bbox' key", e.Kind, e.Index)
	default:
		return fmt.Sprintf("[%s] invalid template", e.Kind)
	}
}

// Validate checks the minimal shape required downstream: a list-typed
// "fields" key whose elements are mappings carrying "name" and
// "pixel_bbox". Checks run in order and the first violation wins; no
// other structural checks (bbox shape, duplicate names) are performed.
func Validate(raw map[string]any) error {
	fields, present := raw["fields"]
	if !present {
		return &ValidationError{Kind: KindMissingFieldsKey}
	}

	items, ok := asList(fields)
	if !ok {
		return &ValidationError{Kind: KindFieldsNotList}
	}

	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return &ValidationError{Kind: KindFieldNotObject, Index: i}
		}
		if _, ok := m["name"]; !ok {
			return &ValidationError{Kind: KindFieldMissingName, Index: i}
		}
		if _, ok := m["pixel_bbox"]; !ok {
			return &ValidationError{Kind: KindFieldMissingBBox, Index: i}
		}
	}

	return nil
}
