// Package apperr defines the error taxonomy shared by all services and its
// mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping and retry policy.
type Kind int

const (
	// InvalidArgument marks malformed identifiers or field values.
	// Locally detected, never retried.
	InvalidArgument Kind = iota + 1
	// NotFound marks a referenced entity that does not exist.
	NotFound
	// Unauthorized marks bad credentials or a bad/expired/missing token.
	Unauthorized
	// Conflict marks duplicate creation, e.g. registering an existing email.
	Conflict
	// FailedPrecondition marks a pipeline stage invoked out of order.
	FailedPrecondition
	// Unavailable marks an unreachable or slow downstream component.
	// This is the one condition a caller should retry with backoff.
	Unavailable
	// Internal marks engine or storage failures.
	Internal
)

// Error carries a Kind alongside a caller-facing message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error with a fixed message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, preserving it for unwrapping.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind of an error, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// HTTPStatus maps an error to the status code the external surface uses.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidArgument:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
