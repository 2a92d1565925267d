// Package errs defines the error taxonomy shared across the ingestion,
// storage, and retrieval packages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the documented failure categories.
type Kind int

const (
	// Unknown is the zero value; never returned by this module's own code.
	Unknown Kind = iota
	Config
	Io
	Storage
	Parse
	Provider
	Conflict
	NotFound
	Validation
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case Io:
		return "Io"
	case Storage:
		return "Storage"
	case Parse:
		return "Parse"
	case Provider:
		return "Provider"
	case Conflict:
		return "Conflict"
	case NotFound:
		return "NotFound"
	case Validation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Error is a typed error carrying a Kind alongside the usual wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a new Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds a new Error wrapping an existing cause.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or Unknown if err is not (or does not
// wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
