package compile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/typeset/internal/diag"
	"git.home.luguber.info/inful/typeset/internal/world"
)

type fakeDoc struct{ pages int }

func (d fakeDoc) PageCount() int { return d.pages }

// fakeEngine scripts one outcome per Run call and reports a fixed dependency set.
type fakeEngine struct {
	outcomes []Outcome
	deps     []DependencySet
	calls    int
	panics   bool
}

func (e *fakeEngine) Compile(ctx context.Context, w *world.World) Outcome {
	if e.panics {
		panic("layout solver overflow")
	}
	o := e.outcomes[e.calls]
	e.calls++
	return o
}

func (e *fakeEngine) Dependencies() DependencySet {
	i := e.calls - 1
	if i < 0 || i >= len(e.deps) {
		return NewDependencySet()
	}
	return e.deps[i]
}

func testWorld(t *testing.T) *world.World {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.tsd"), []byte("x\n"), 0o644))
	w, err := world.New(world.Options{Root: root, Entry: "main.tsd"})
	require.NoError(t, err)
	return w
}

func TestDriverStateTransitions(t *testing.T) {
	eng := &fakeEngine{
		outcomes: []Outcome{
			Success(fakeDoc{pages: 1}, nil),
			Failure([]diag.Diagnostic{diag.Error("boom")}),
			Success(fakeDoc{pages: 2}, nil),
		},
		deps: []DependencySet{
			NewDependencySet("main.tsd"),
			NewDependencySet("main.tsd"),
			NewDependencySet("main.tsd"),
		},
	}
	d := NewDriver(eng, testWorld(t), nil)
	assert.Equal(t, StateIdle, d.State())

	outcome := d.Run(context.Background())
	assert.True(t, outcome.OK())
	assert.Equal(t, StateSucceeded, d.State())

	outcome = d.Run(context.Background())
	assert.False(t, outcome.OK())
	assert.Equal(t, StateFailed, d.State())

	// A failed state accepts a new trigger like any terminal state.
	outcome = d.Run(context.Background())
	assert.True(t, outcome.OK())
	assert.Equal(t, StateSucceeded, d.State())
}

func TestDriverReplacesDependencySet(t *testing.T) {
	eng := &fakeEngine{
		outcomes: []Outcome{
			Success(fakeDoc{1}, nil),
			Success(fakeDoc{1}, nil),
		},
		deps: []DependencySet{
			NewDependencySet("main.tsd", "chapter.tsd"),
			NewDependencySet("main.tsd"),
		},
	}
	d := NewDriver(eng, testWorld(t), nil)

	d.Run(context.Background())
	assert.True(t, d.Dependencies().Contains("chapter.tsd"))

	d.Run(context.Background())
	assert.False(t, d.Dependencies().Contains("chapter.tsd"),
		"a dependency dropped this run must stop triggering recompiles")
}

func TestDriverEntryAlwaysInDependencies(t *testing.T) {
	eng := &fakeEngine{
		outcomes: []Outcome{Failure([]diag.Diagnostic{diag.Error("entry gone")})},
		deps:     []DependencySet{NewDependencySet()},
	}
	d := NewDriver(eng, testWorld(t), nil)
	d.Run(context.Background())
	assert.True(t, d.Dependencies().Contains("main.tsd"))
}

func TestDriverConvertsPanicToSyntheticDiagnostic(t *testing.T) {
	eng := &fakeEngine{panics: true}
	d := NewDriver(eng, testWorld(t), nil)

	var outcome Outcome
	require.NotPanics(t, func() {
		outcome = d.Run(context.Background())
	})
	require.False(t, outcome.OK())
	require.Len(t, outcome.Diagnostics, 1)
	assert.Equal(t, diag.SeverityError, outcome.Diagnostics[0].Severity)
	assert.Contains(t, outcome.Diagnostics[0].Message, "internal error")
	assert.Contains(t, outcome.Diagnostics[0].Message, "layout solver overflow")
	assert.Equal(t, StateFailed, d.State())
}

func TestDependencySetClone(t *testing.T) {
	s := NewDependencySet("a", "b")
	c := s.Clone()
	c.Add("c")
	assert.False(t, s.Contains("c"))
	assert.True(t, c.Contains("a"))
}
