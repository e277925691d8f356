// Package configfile loads structured data files (JSON or YAML) into
// generic mappings. It distinguishes a missing file from a syntactically
// invalid one so callers can report a specific diagnostic.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrKind categorizes load failures.
type ErrKind int

const (
	// KindNotFound means the path did not resolve to an existing file.
	KindNotFound ErrKind = iota
	// KindParse means the file existed but its content was not valid
	// structured text.
	KindParse
)

// String returns a string representation of the ErrKind.
func (k ErrKind) String() string {
	switch k {
	case KindNotFound:
		return "FILE_NOT_FOUND"
	case KindParse:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoadError reports a failure to load a structured data file.
type LoadError struct {
	Path string
	Kind ErrKind
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("[%s] file not found: %s", e.Kind, e.Path)
	default:
		return fmt.Sprintf("[%s] invalid content in %s: %v", e.Kind, e.Path, e.Err)
	}
}

// Unwrap returns the underlying error, if any.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a LoadError of kind KindNotFound.
func IsNotFound(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == KindNotFound
}

// IsParse reports whether err is a LoadError of kind KindParse.
func IsParse(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == KindParse
}

// Load reads the file at path and parses it into a generic mapping.
// The format is selected by extension: .yaml/.yml are parsed as YAML,
// everything else as JSON. Load has no side effects beyond the read.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: KindNotFound, Err: err}
	}

	var parsed map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, &LoadError{Path: path, Kind: KindParse, Err: err}
		}
	default:
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, &LoadError{Path: path, Kind: KindParse, Err: err}
		}
	}

	return parsed, nil
}

// LoadStringMap loads the file at path and coerces every top-level value
// to its string form. Files holding override data may carry numbers or
// booleans; downstream merging operates on strings only.
func LoadStringMap(path string) (map[string]string, error) {
	parsed, err := Load(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(parsed))
	for k, v := range parsed {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out, nil
}
