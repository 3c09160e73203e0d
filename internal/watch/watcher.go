// Package watch observes the file system and re-triggers compilation when a
// dependency of the last compile attempt changes. Events for files no prior
// compile ever read are ignored; they cannot be told apart from noise, and
// fewer spurious rebuilds beats never missing one we could not act on anyway.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/typeset/internal/apperr"
	"git.home.luguber.info/inful/typeset/internal/compile"
	"git.home.luguber.info/inful/typeset/internal/metrics"
	"git.home.luguber.info/inful/typeset/internal/world"
)

// DefaultDebounce coalesces event bursts from a single edit (editors that
// write via temp file + rename fire several events per save).
const DefaultDebounce = 150 * time.Millisecond

// Runner is the compile driver as the watcher sees it: trigger a cycle,
// learn what it depended on, invalidate stale cache entries between cycles.
type Runner interface {
	Run(ctx context.Context) compile.Outcome
	Dependencies() compile.DependencySet
	Invalidate(ids ...world.FileID)
}

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	Recorder metrics.Recorder
	// OnCycle is called after every completed compile cycle with its
	// outcome. The watcher itself never inspects diagnostics.
	OnCycle func(compile.Outcome)
}

// Watcher drives the watch loop. Create with New, run with Run.
type Watcher struct {
	world    *world.World
	runner   Runner
	debounce time.Duration
	recorder metrics.Recorder
	onCycle  func(compile.Outcome)

	fsw     *fsnotify.Watcher
	watched map[string]bool
	deps    compile.DependencySet
	dirty   map[world.FileID]struct{}
}

// New builds a watcher over the world's root directory.
func New(w *world.World, runner Runner, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindWatchIO, "create file watcher")
	}
	wt := &Watcher{
		world:    w,
		runner:   runner,
		debounce: opts.Debounce,
		recorder: opts.Recorder,
		onCycle:  opts.OnCycle,
		fsw:      fsw,
		watched:  make(map[string]bool),
		dirty:    make(map[world.FileID]struct{}),
	}
	if wt.debounce <= 0 {
		wt.debounce = DefaultDebounce
	}
	if wt.recorder == nil {
		wt.recorder = metrics.NoopRecorder{}
	}
	if wt.onCycle == nil {
		wt.onCycle = func(compile.Outcome) {}
	}
	if err := wt.addDirsRecursive(w.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return wt, nil
}

// Close releases the underlying file-system watcher.
func (wt *Watcher) Close() error {
	return wt.fsw.Close()
}

// Run performs the initial compile cycle and then loops until the context is
// canceled, recompiling once per debounced burst of relevant changes. It
// returns a watch-io error if the notification subsystem fails; compile
// failures never stop the loop.
func (wt *Watcher) Run(ctx context.Context) error {
	wt.cycle(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-wt.fsw.Events:
			if !ok {
				return apperr.New(apperr.KindWatchIO, "event stream closed")
			}
			if wt.handleEvent(ev) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(wt.debounce)
				timerC = timer.C
			}

		case err, ok := <-wt.fsw.Errors:
			if !ok {
				return apperr.New(apperr.KindWatchIO, "error stream closed")
			}
			// The subsystem can no longer guarantee we observe changes.
			return apperr.Wrap(err, apperr.KindWatchIO, "file watcher failed")

		case <-timerC:
			timerC = nil
			ids := make([]world.FileID, 0, len(wt.dirty))
			for id := range wt.dirty {
				ids = append(ids, id)
			}
			clear(wt.dirty)
			// Invalidation happens here, strictly between cycles: the
			// previous cycle has completed and the next starts below.
			wt.runner.Invalidate(ids...)
			wt.cycle(ctx)
		}
	}
}

// handleEvent reports whether the event was relevant and marked state dirty.
func (wt *Watcher) handleEvent(ev fsnotify.Event) bool {
	if shouldIgnore(ev.Name) {
		return false
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = wt.addDirsRecursive(ev.Name)
			return false
		}
	}

	id, err := wt.world.Resolve(ev.Name)
	if err != nil {
		return false
	}
	relevant := id == wt.world.Entry() || wt.deps.Contains(id)
	wt.recorder.IncWatchEvent(relevant)
	if !relevant {
		return false
	}
	slog.Debug("relevant change", "file", id, "op", ev.Op.String())
	wt.dirty[id] = struct{}{}
	return true
}

// cycle runs one compile and refreshes the dependency snapshot afterwards,
// so the new set is in place before the next event decision.
func (wt *Watcher) cycle(ctx context.Context) {
	outcome := wt.runner.Run(ctx)
	wt.deps = wt.runner.Dependencies()
	wt.watchExternalDeps()
	wt.onCycle(outcome)
}

// watchExternalDeps ensures parent directories of dependencies outside the
// root (externally referenced fonts) are watched too.
func (wt *Watcher) watchExternalDeps() {
	for id := range wt.deps {
		abs := wt.world.Abs(id)
		if strings.HasPrefix(abs, wt.world.Root()+string(filepath.Separator)) {
			continue
		}
		dir := filepath.Dir(abs)
		if wt.watched[dir] {
			continue
		}
		if err := wt.fsw.Add(dir); err != nil {
			slog.Warn("watch add failed", "dir", dir, "error", err)
			continue
		}
		wt.watched[dir] = true
	}
}

func (wt *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if wt.watched[path] {
			return nil
		}
		if err := wt.fsw.Add(path); err != nil {
			slog.Warn("watch add failed", "dir", path, "error", err)
			return nil
		}
		wt.watched[path] = true
		return nil
	})
}

// shouldIgnore filters events that should never trigger recompiles: hidden
// files, editor temp/swap files, OS metadata.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
