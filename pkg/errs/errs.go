// Package errs defines the error-kind taxonomy shared across the core:
// a small closed set of sentinel-wrapped kinds rather than a rich typed
// hierarchy, since the core's error surface is deliberately narrow.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named by the core's error handling
// design: a fixed vocabulary the host glue switches on to pick an HTTP
// status or CLI exit code.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindUnknownApprover    Kind = "UnknownApprover"
	KindKeyExists          Kind = "KeyExists"
	KindNotFound           Kind = "NotFound"
	KindLedgerCorruption   Kind = "LedgerCorruption"
	KindCanonError         Kind = "CanonError"
	KindIoError            Kind = "IoError"
)

// Error wraps an underlying cause with one of the fixed Kinds.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind, looking through wraps.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
