// Package cierrors defines the error taxonomy of the build pipeline and
// the mapping from error kinds to process exit codes.
package cierrors

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Every fatal error produced by the
// pipeline carries exactly one kind; the first failure aborts the run.
type Kind string

const (
	KindConfiguration Kind = "configuration" // missing or invalid mandatory input
	KindAcquisition   Kind = "acquisition"   // clone/fetch/checkout failure
	KindIsolation     Kind = "isolation"     // cache attach/detach failure
	KindBuild         Kind = "build"         // nonzero status from the build driver
	KindArtifact      Kind = "artifact"      // missing/malformed version-info resource
)

// Error is the typed failure passed unchanged from the failing stage to
// the top level.
type Error struct {
	Kind    Kind
	Message string
	// Status holds the exit status of a delegated external command when
	// one caused the failure, 0 otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus attaches a delegated command's exit status.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// KindOf reports the kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
