package errs

import (
	"errors"
	"fmt"
)

// Kind classifies errors surfaced to callers. The API layer maps kinds to
// HTTP status codes and the CLI maps them to exit messages.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindQuotaExhausted      Kind = "quota_exhausted"
	KindInsufficientData    Kind = "insufficient_data"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Error carries a kind plus a wrapped cause
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// reported as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether the error chain carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors for the common kinds.

func InvalidInput(format string, args ...interface{}) error {
	return Newf(KindInvalidInput, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return Newf(KindNotFound, format, args...)
}

func InsufficientData(format string, args ...interface{}) error {
	return Newf(KindInsufficientData, format, args...)
}
