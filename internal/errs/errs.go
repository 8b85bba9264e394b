// Package errs contains the error kinds shared by the store, service and
// handler layers. Handlers map kinds to status codes; anything that is not
// one of these kinds is treated as an internal failure.
package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match them with errors.Is.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated principal lacking a role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates an id or id path that does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation (duplicate email, duplicate enrollment).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyEnrolled is the Conflict raised by a second enrollment for the same course.
	ErrAlreadyEnrolled = fmt.Errorf("already enrolled: %w", ErrConflict)

	// ErrNotEnrolled indicates a progress write for a course the user is not enrolled in.
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrInternal indicates a storage or codec failure.
	ErrInternal = errors.New("internal error")
)

// Error pairs a kind with a message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an Error of the given kind.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf returns a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(ErrValidation, format, args...)
}

// NotFoundf returns a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(ErrNotFound, format, args...)
}

// Conflictf returns a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return New(ErrConflict, format, args...)
}

// Message returns the caller-facing message carried by err, or fallback
// when err carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
