// Package apperr provides the structured error type used across typeset for
// classification and exit-code mapping in the CLI.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and exit-code mapping.
type Kind string

const (
	// User input and configuration errors
	KindConfig Kind = "config"
	KindInput  Kind = "input" // input file cannot be opened/resolved

	// Compilation errors
	KindDiagnostic Kind = "diagnostic" // engine reported diagnostics
	KindInternal   Kind = "internal"   // unexpected engine/driver fault

	// Export errors
	KindExportPattern Kind = "export-pattern" // output pattern invalid, fails fast
	KindExportPartial Kind = "export-partial" // some pages exported, some failed

	// Watch subsystem errors
	KindWatchIO Kind = "watch-io" // change notification subsystem failed

	// Self-update errors
	KindUpdate Kind = "update"
)

// Error is a structured error with a kind and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping a cause.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the kind from an error chain; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
