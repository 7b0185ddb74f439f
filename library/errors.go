package library

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

// Error kinds returned by the circulation rules and the storage layer.
const (
	KindUnavailable        Kind = "UNAVAILABLE"
	KindAlreadyReturned    Kind = "ALREADY_RETURNED"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"
	KindForbidden          Kind = "FORBIDDEN"
	KindValidation         Kind = "VALIDATION"
	KindConflict           Kind = "CONFLICT"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInternal           Kind = "INTERNAL"
)

// HTTPStatus returns the HTTP status code for an error kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable, KindAlreadyReturned, KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error variant of the package.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, cause: e.cause}
}

// Sentinel errors for use with errors.Is.
var (
	ErrUnavailable        = &Error{Kind: KindUnavailable, Message: "book unavailable"}
	ErrAlreadyReturned    = &Error{Kind: KindAlreadyReturned, Message: "already returned"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation, Message: "invariant violation"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation error"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unavailablef creates an unavailable error with a formatted message.
func Unavailablef(format string, args ...any) *Error {
	return newError(KindUnavailable, format, args...)
}

// AlreadyReturnedf creates an already-returned error with a formatted message.
func AlreadyReturnedf(format string, args ...any) *Error {
	return newError(KindAlreadyReturned, format, args...)
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// InvariantViolationf creates an invariant violation error with a formatted message.
func InvariantViolationf(format string, args ...any) *Error {
	return newError(KindInvariantViolation, format, args...)
}

// Forbiddenf creates a forbidden error with a formatted message.
func Forbiddenf(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// ValidationWithDetails creates a validation error carrying per-field messages.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// Wrap wraps err with a kind and message.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
