package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and maps it to an HTTP status.
type Kind string

const (
	Unauthenticated   Kind = "unauthenticated"
	Forbidden         Kind = "forbidden"
	NotFound          Kind = "not_found"
	InvalidRequest    Kind = "invalid_request"
	InvalidTransition Kind = "invalid_transition"
	Conflict          Kind = "conflict"
	Internal          Kind = "internal"
)

// Error is the error type returned by the services. Effects lists the steps
// of a multi-write operation that had been applied before the failure; when
// RolledBack is set none of them persisted.
type Error struct {
	Kind       Kind
	Message    string
	Effects    []string
	RolledBack bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest, InvalidTransition:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches err as the cause of a new error of the given kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or Internal for errors that carry none.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}
