// Package apperror defines the error kinds shared by every layer of the blog.
//
// ERROR KINDS:
//
//	ErrValidation   → a field is missing, too long or malformed
//	ErrConflict     → a unique field (username, email) is already taken
//	ErrNotFound     → the addressed record does not exist
//	ErrReference    → a record points at another record that does not exist
//	ErrForbidden    → the caller is signed in but may not touch the record
//	ErrUnauthorized → the caller is not signed in, or the credentials are wrong
//
// Lower layers return *AppError values (or wrap them with fmt.Errorf("...: %w")).
// Callers branch with errors.Is on the sentinel and read Message/Field through
// errors.As. Nothing in this package knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrReference    = errors.New("dangling reference")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable error message
	Field   string // optional: form field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record. id is formatted with %v so callers can
// pass integer keys or names directly.
func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on field. The message is what a
// registration form shows under that field.
func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
	}
}

// Reference reports that a record refers to a target that does not resolve,
// e.g. a post pointing at a deleted category.
func Reference(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrReference,
		Message: fmt.Sprintf("referenced %s %v does not exist", resource, id),
		Field:   resource,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// FieldOf returns the offending field of err, or "" when err carries none.
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// MessageOf returns the human-readable message of err. Errors that are not
// *AppError yield fallback so internals never leak to a page.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
