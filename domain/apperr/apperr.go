// Package apperr defines the error taxonomy shared by every module.
//
// An *Error is JSON-serialisable so it can cross mono request-reply boundaries
// without losing its Kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP surface.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// FieldError describes a single field-level violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed application error.
type Error struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Unauthenticated creates an error for a missing or invalid credential.
func Unauthenticated(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates an error for an authenticated but insufficient principal.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for an absent resource.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates an error for a uniqueness violation.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation creates an error carrying per-field violations.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Internal wraps an unexpected failure. The cause is kept for logging but is
// never serialised.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// As extracts an *Error from err. Errors outside the taxonomy are reported as
// Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err, "internal error")
}

// KindOf returns the Kind of err, or the empty Kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Fault carries an *Error inside a request-reply response body. A zero Fault
// means success.
type Fault struct {
	Error *Error `json:"error,omitempty"`
}

// FaultOf wraps err for transport. Untyped errors become Internal.
func FaultOf(err error) Fault {
	if err == nil {
		return Fault{}
	}
	return Fault{Error: As(err)}
}

// Err returns the carried error, or nil.
func (f Fault) Err() error {
	if f.Error == nil {
		return nil
	}
	return f.Error
}
