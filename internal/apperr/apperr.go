// Package apperr defines the error taxonomy shared by the assembly and
// generation pipelines. Callers branch on Kind rather than message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation: missing/empty required input, no resolvable assets.
	KindValidation Kind = iota
	// KindConflict: an active generation task already exists for the subject.
	KindConflict
	// KindNotFound: unknown task id, catalog key, or background track.
	KindNotFound
	// KindExternalService: the remote API returned a failure or a malformed payload.
	KindExternalService
	// KindProcessExecution: the external tool exited nonzero or timed out.
	KindProcessExecution
	// KindIO: download, copy, or cleanup filesystem failure.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExternalService:
		return "external_service"
	case KindProcessExecution:
		return "process_execution"
	case KindIO:
		return "io"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and context message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain. The second return value is
// false for untagged errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
