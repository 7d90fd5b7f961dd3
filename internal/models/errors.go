package models

import "fmt"

// ModelLoadError reports an unreachable or malformed model resource.
// The gateway stays re-loadable after returning it.
type ModelLoadError struct {
	Source string
	Err    error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("model load failed for %q: %v", e.Source, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// InferenceError reports a failed forward pass.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// AnalysisError is the run-level failure returned by the pipeline. No
// partial result accompanies it.
type AnalysisError struct {
	Stage Stage
	Cause string
	Err   error
}

func NewAnalysisError(stage Stage, cause string, err error) *AnalysisError {
	return &AnalysisError{Stage: stage, Cause: cause, Err: err}
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("analysis failed during %s: %s", e.Stage, e.Cause)
	}
	return fmt.Sprintf("analysis failed during %s: %s: %v", e.Stage, e.Cause, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// InvalidArtifactError is raised by the renderer for empty or non-square data.
type InvalidArtifactError struct {
	Name   string
	Length int
	Reason string
}

func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("invalid artifact %q (length %d): %s", e.Name, e.Length, e.Reason)
}

// ValidationError represents a rejected configuration or parameter value
type ValidationError struct {
	Parameter string
	Value     interface{}
	Message   string
}

// NewValidationError creates a new validation error
func NewValidationError(parameter string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Parameter: parameter,
		Value:     value,
		Message:   message,
	}
}

// Error returns the error message
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for parameter '%s' with value '%v': %s",
		ve.Parameter, ve.Value, ve.Message)
}
