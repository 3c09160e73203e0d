package compile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/typeset/internal/diag"
	"git.home.luguber.info/inful/typeset/internal/metrics"
	"git.home.luguber.info/inful/typeset/internal/world"
)

// State of the driver between triggers.
type State string

const (
	StateIdle      State = "idle"
	StateCompiling State = "compiling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Driver runs compile cycles against one world. A cycle is triggered
// externally (initial invocation or a watch event); the driver never retries
// on its own. After every attempt, success or failure, the dependency set is
// replaced wholesale with what the engine reports: a dependency dropped this
// run stops triggering recompiles.
type Driver struct {
	engine   Engine
	world    *world.World
	recorder metrics.Recorder

	mu    sync.Mutex
	state State
	deps  DependencySet
}

// NewDriver builds an idle driver. recorder may be nil for no metrics.
func NewDriver(engine Engine, w *world.World, recorder metrics.Recorder) *Driver {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Driver{
		engine:   engine,
		world:    w,
		recorder: recorder,
		state:    StateIdle,
		deps:     NewDependencySet(w.Entry()),
	}
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dependencies returns a copy of the most recent attempt's dependency set.
func (d *Driver) Dependencies() DependencySet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deps.Clone()
}

// Invalidate drops the given identifiers from the world's file cache. Callers
// must only invoke it between cycles; the watcher does so after a cycle
// completes and before triggering the next one.
func (d *Driver) Invalidate(ids ...world.FileID) {
	d.world.Invalidate(ids...)
}

// Run executes exactly one compile cycle: freeze the world's clock, invoke
// the engine, record the reported dependency set, and hand the outcome back.
// An unexpected engine fault is converted to a Failure with one synthetic
// internal-error diagnostic; Run never panics outward.
func (d *Driver) Run(ctx context.Context) Outcome {
	d.mu.Lock()
	d.state = StateCompiling
	d.mu.Unlock()

	cycle := uuid.NewString()
	start := time.Now()
	slog.Debug("compile cycle starting", "cycle", cycle, "entry", d.world.Entry())

	d.world.BeginAttempt()
	outcome := d.invoke(ctx)

	deps := d.engine.Dependencies().Clone()
	// The entry file is always a dependency, even when the engine could not
	// read it (renamed or deleted mid-session).
	deps.Add(d.world.Entry())

	d.mu.Lock()
	d.deps = deps
	if outcome.OK() {
		d.state = StateSucceeded
	} else {
		d.state = StateFailed
	}
	state := d.state
	d.mu.Unlock()

	elapsed := time.Since(start)
	d.recorder.ObserveCompileDuration(elapsed, string(state))
	d.recorder.IncCompileOutcome(string(state))
	slog.Debug("compile cycle finished",
		"cycle", cycle,
		"state", state,
		"duration", elapsed,
		"dependencies", len(deps))
	return outcome
}

// invoke calls the engine behind a panic fence.
func (d *Driver) invoke(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine fault", "panic", r)
			outcome = Failure([]diag.Diagnostic{
				diag.Error(fmt.Sprintf("internal error: %v", r)),
			})
		}
	}()
	return d.engine.Compile(ctx, d.world)
}
