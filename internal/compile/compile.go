// Package compile owns the compilation cycle: it hands the engine a consistent
// world, collects the outcome and the dependency set, and guarantees that an
// engine fault never takes the process down.
package compile

import (
	"context"

	"git.home.luguber.info/inful/typeset/internal/diag"
	"git.home.luguber.info/inful/typeset/internal/world"
)

// Document is the opaque compiled representation produced by the engine.
// It is immutable; recompilation supersedes it, never patches it.
type Document interface {
	PageCount() int
}

// Outcome is the tagged result of one compile attempt. Exactly one of
// Document or an error-bearing Diagnostics slice is meaningful: a Success
// carries Document plus warnings, a Failure carries Diagnostics.
type Outcome struct {
	Document    Document
	Warnings    []diag.Diagnostic
	Diagnostics []diag.Diagnostic
}

// OK reports whether the attempt produced a document.
func (o Outcome) OK() bool { return o.Document != nil }

// Success builds a success outcome.
func Success(doc Document, warnings []diag.Diagnostic) Outcome {
	return Outcome{Document: doc, Warnings: warnings}
}

// Failure builds a failure outcome.
func Failure(diags []diag.Diagnostic) Outcome {
	return Outcome{Diagnostics: diags}
}

// DependencySet is the set of file identifiers one compile attempt actually
// read, fonts and includes included.
type DependencySet map[world.FileID]struct{}

// NewDependencySet builds a set from identifiers.
func NewDependencySet(ids ...world.FileID) DependencySet {
	s := make(DependencySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s DependencySet) Contains(id world.FileID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts an identifier.
func (s DependencySet) Add(id world.FileID) {
	s[id] = struct{}{}
}

// Clone returns an independent copy.
func (s DependencySet) Clone() DependencySet {
	out := make(DependencySet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Engine is the boundary to the document-compilation library. Compile is a
// single blocking call from the driver's perspective; whatever parallelism
// the engine uses internally is opaque here. Dependencies reports the files
// the most recent Compile call read, success or failure.
type Engine interface {
	Compile(ctx context.Context, w *world.World) Outcome
	Dependencies() DependencySet
}
