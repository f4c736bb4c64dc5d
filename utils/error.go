package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports missing or malformed input. The request is not applied.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a duplicate unique value, or a delete blocked by
// existing references. References carries the exact blocking count when known.
type ConflictError struct {
	Msg        string
	References int64
}

func (e *ConflictError) Error() string { return e.Msg }

// AuthError reports a failed credential check or an unapproved account.
// Rejected distinguishes the terminal admin-rejected case from the default
// pending/inactive case; the two carry different user-facing messages.
type AuthError struct {
	Msg      string
	Rejected bool
}

func (e *AuthError) Error() string { return e.Msg }

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
