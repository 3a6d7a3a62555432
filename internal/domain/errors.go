package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing entity (case, document, analysis row).
var ErrNotFound = errors.New("not found")

// ValidationError rejects input before any external collaborator is called.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ExternalServiceError wraps a transport-level failure from a collaborator
// (OCR backend, generation model) after retries were exhausted.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PipelineFailure labels a stage error with the stage that produced it; the
// chain runner writes its message to Case.ErrorMessage.
type PipelineFailure struct {
	Stage string
	Err   error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PipelineFailure) Unwrap() error {
	return e.Err
}

// StageFromError extracts the failing stage name, if the error carries one.
func StageFromError(err error) (string, bool) {
	var pf *PipelineFailure
	if errors.As(err, &pf) {
		return pf.Stage, true
	}
	return "", false
}
