package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks unknown project keys and hosted ids.
	ErrNotFound = errors.New("not found")
	// ErrInvariant marks operations rejected because they would break a store invariant.
	ErrInvariant = errors.New("invariant violation")
	// ErrLastProject is returned when deleting the only remaining project.
	ErrLastProject = fmt.Errorf("%w: the last project cannot be deleted", ErrInvariant)
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled by user")
)

// ValidationError reports invalid user input. No state is mutated when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError wraps a durable storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
