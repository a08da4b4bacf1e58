package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the interview engine. Use errors.Is against these.
var (
	// ErrNotFound indicates a persona or question id could not be resolved.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrGeneration indicates the model did not produce usable output within the retry budget.
	ErrGeneration = errors.New("generation failed")

	// ErrStorage indicates the persistence layer was unavailable or a write failed.
	ErrStorage = errors.New("storage operation failed")
)

// InterviewError carries the failing operation, the error kind and the underlying cause.
//
// It unwraps to both Kind and Err, so errors.Is(err, ErrGeneration) and
// errors.Is(err, context.DeadlineExceeded) can hold for the same value.
type InterviewError struct {
	Op   string
	Kind error
	Err  error
}

func (e *InterviewError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("jinny: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("jinny: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the kind and the cause.
func (e *InterviewError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound wraps err (may be nil) as an ErrNotFound failure of op.
func NotFound(op string, err error) error {
	return &InterviewError{Op: op, Kind: ErrNotFound, Err: err}
}

// Invalid wraps err as an ErrValidation failure of op.
func Invalid(op string, err error) error {
	return &InterviewError{Op: op, Kind: ErrValidation, Err: err}
}

// GenerationFailed wraps err as an ErrGeneration failure of op.
func GenerationFailed(op string, err error) error {
	return &InterviewError{Op: op, Kind: ErrGeneration, Err: err}
}

// StorageFailed wraps err as an ErrStorage failure of op. A nil err yields nil.
func StorageFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InterviewError{Op: op, Kind: ErrStorage, Err: err}
}
