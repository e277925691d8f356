// Package formdata holds the per-run field value sets and the merge
// policy that combines machine-extracted values with user overrides.
package formdata

import "github.com/autoformfill/formfill/internal/configfile"

// ExtractedData maps field names to values produced by extraction.
type ExtractedData map[string]string

// OverrideData maps field names to user-supplied values that take
// precedence over extracted ones. Keys need not correspond to declared
// template fields.
type OverrideData map[string]string

// MergedData is the authoritative dataset passed to filling.
type MergedData map[string]string

// Merge combines extracted values with optional overrides. Overrides win
// unconditionally for shared names; entries unique to either side are
// kept. Neither input is mutated, and a nil override yields a copy equal
// to extracted.
func Merge(extracted ExtractedData, override OverrideData) MergedData {
	merged := make(MergedData, len(extracted)+len(override))
	for k, v := range extracted {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// LoadOverrides reads override values from a structured data file. Any
// load failure is returned as-is so callers can distinguish a missing
// file from an unparseable one.
func LoadOverrides(path string) (OverrideData, error) {
	values, err := configfile.LoadStringMap(path)
	if err != nil {
		return nil, err
	}
	return OverrideData(values), nil
}
