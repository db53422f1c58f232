// Package apperr defines the error taxonomy shared by the session engine,
// its storage backends, and the transports in front of it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeUnknown                Code = "UNKNOWN"
	CodeNotFound               Code = "NOT_FOUND"
	CodeConflict               Code = "CONFLICT"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeValidation             Code = "VALIDATION"
	CodeInfrastructure         Code = "INFRASTRUCTURE"
)

// HTTPStatus maps a code to the status the REST surface responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidStateTransition:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound               = New(CodeNotFound, "not found")
	ErrConflict               = New(CodeConflict, "conflict")
	ErrInvalidStateTransition = New(CodeInvalidStateTransition, "invalid state transition")
	ErrValidation             = New(CodeValidation, "validation failed")
	ErrInfrastructure         = New(CodeInfrastructure, "infrastructure failure")
)

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound reports a missing resource, or one that is not owned by the caller.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s %q not found", resource, id),
		Metadata: map[string]string{"resource": resource, "id": id},
	}
}

// Validation reports invalid caller input.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// InvalidTransition reports an operation attempted from a disallowed status.
func InvalidTransition(op, from string) *Error {
	return &Error{
		Code:     CodeInvalidStateTransition,
		Message:  fmt.Sprintf("cannot %s a session that is %s", op, from),
		Metadata: map[string]string{"operation": op, "status": from},
	}
}

// Infrastructure wraps a storage or network failure so callers can decide on retries.
func Infrastructure(message string, cause error) *Error {
	return Wrap(CodeInfrastructure, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether the failure is transient from the caller's point of view.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeInfrastructure
}
