package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies one of the six sequential pipeline stages.
type Stage int

const (
	StageInputValidation Stage = iota
	StageTemplate
	StageExtraction
	StageOverrides
	StageFill
	StageSave
)

// String returns a string representation of the Stage.
func (s Stage) String() string {
	switch s {
	case StageInputValidation:
		return "input validation"
	case StageTemplate:
		return "template acquisition"
	case StageExtraction:
		return "extraction"
	case StageOverrides:
		return "override processing"
	case StageFill:
		return "fill"
	case StageSave:
		return "save"
	default:
		return "unknown"
	}
}

// failureLabel maps each stage to its failure class.
func (s Stage) failureLabel() string {
	switch s {
	case StageInputValidation:
		return "INPUT_NOT_FOUND"
	case StageTemplate:
		return "TEMPLATE_LOAD_FAILED"
	case StageExtraction:
		return "EXTRACTION_FAILED"
	case StageOverrides:
		return "OVERRIDE_LOAD_FAILED"
	case StageFill:
		return "FILL_FAILED"
	case StageSave:
		return "SAVE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrCancelled reports that the run was aborted by user interruption.
var ErrCancelled = errors.New("operation cancelled by user")

// StageError is the single tagged failure type every stage returns. It
// identifies the stage, the underlying cause, and — for input
// validation — which input role was missing.
type StageError struct {
	Stage Stage
	// Role names the missing input (image, template, data) for
	// StageInputValidation failures.
	Role string
	Err  error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Stage.failureLabel(), e.Role, e.Err)
	}
	return fmt.Sprintf("[%s] %s failed: %v", e.Stage.failureLabel(), e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
