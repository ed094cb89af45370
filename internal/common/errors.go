// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Session errors.
	ErrSessionTerminated = errors.New("session terminated")
	ErrSessionExists     = errors.New("active session already exists")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError indicates malformed input rejected before any matching
// or persistence begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ExternalServiceError wraps a failure of the reasoning service or a
// search provider. Callers must degrade to an empty result set rather
// than propagate it.
type ExternalServiceError struct {
	Err     error
	Service string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PartialBatchError reports a chunked persistence operation that failed
// part way through. Prior chunks remain committed; Processed lets the
// caller retry only the remainder.
type PartialBatchError struct {
	Err       error
	Processed int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch failed after %d items: %v", e.Processed, e.Err)
}

func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	var extErr *ExternalServiceError
	if errors.As(err, &extErr) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
