// Package diag defines the diagnostic values produced by the compile engine and
// the terminal renderer that maps their spans back to source text.
package diag

import "fmt"

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Span points into a source file by byte range. File is the logical file
// identifier the engine read the text under.
type Span struct {
	File  string
	Start int
	End   int
}

// Diagnostic is a structured error or warning emitted by the engine.
// It is never mutated after emission.
type Diagnostic struct {
	Severity Severity
	Message  string
	Spans    []Span
	Hints    []string
}

// Errorf is a convenience constructor for a single-span error diagnostic.
func Errorf(span Span, format string, args ...any) Diagnostic {
	return newf(SeverityError, []Span{span}, format, args...)
}

// Warningf is a convenience constructor for a single-span warning diagnostic.
func Warningf(span Span, format string, args ...any) Diagnostic {
	return newf(SeverityWarning, []Span{span}, format, args...)
}

// Error constructs an error diagnostic without a source position.
func Error(message string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Message: message}
}

// Warning constructs a warning diagnostic without a source position.
func Warning(message string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Message: message}
}

// HasErrors reports whether any diagnostic in the slice is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func newf(sev Severity, spans []Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: sev, Spans: spans, Message: fmt.Sprintf(format, args...)}
}
