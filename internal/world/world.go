// Package world supplies the compile engine with a consistent view of the
// outside world: files, fonts, and time. Within one compile attempt every
// query is stable; the same identifier always yields the same bytes and Now
// always returns the same instant, even if the disk changes underneath.
package world

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"git.home.luguber.info/inful/typeset/internal/world/fonts"
)

// FileID is the logical identifier of a file inside a session: the
// slash-separated path relative to the session root, or an absolute
// slash-separated path for files outside the root (external fonts).
type FileID string

// ErrNotFound is returned by Read when the identifier does not resolve to a
// readable file.
var ErrNotFound = errors.New("file not found")

// Options configure a World. Zero values mean "current directory root, no
// extra font paths, embedded fonts on, wall-clock time".
type Options struct {
	Root          string
	Entry         string // path to the entry file, absolute or root-relative
	FontPaths     []string
	EmbeddedFonts bool
	// FixedNow pins Now to a caller-supplied instant for reproducible output.
	FixedNow *time.Time
}

type fileEntry struct {
	data        []byte
	fingerprint uint64
}

// World is created once per CLI invocation (or once per watch session) and
// handed by reference into every compile call. There is no ambient global
// state: time and fonts live here.
type World struct {
	root    string
	entry   FileID
	catalog *fonts.Catalog
	fixed   *time.Time

	mu         sync.Mutex
	attemptNow time.Time
	cache      map[FileID]fileEntry
}

// New resolves the root and entry, discovers fonts, and returns a ready World.
func New(opts Options) (*World, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if st, err := os.Stat(absRoot); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	w := &World{
		root:    absRoot,
		catalog: fonts.Discover(opts.FontPaths, opts.EmbeddedFonts),
		fixed:   opts.FixedNow,
		cache:   make(map[FileID]fileEntry),
	}

	entryPath := opts.Entry
	if !filepath.IsAbs(entryPath) {
		entryPath = filepath.Join(absRoot, entryPath)
	}
	w.entry, err = w.Resolve(entryPath)
	if err != nil {
		return nil, err
	}
	w.BeginAttempt()
	return w, nil
}

// Root returns the absolute session root directory.
func (w *World) Root() string { return w.root }

// Entry returns the identifier of the entry file. The entry is always watched
// in watch mode, whether or not the last compile managed to read it.
func (w *World) Entry() FileID { return w.entry }

// Fonts returns the session's ordered font catalog.
func (w *World) Fonts() *fonts.Catalog { return w.catalog }

// Now returns the attempt's frozen instant. With a fixed timestamp configured
// it returns that instant for the whole session.
func (w *World) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attemptNow
}

// BeginAttempt freezes the clock for the next compile attempt. Cached file
// contents are kept; staleness is resolved only through Invalidate between
// attempts, never mid-attempt.
func (w *World) BeginAttempt() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fixed != nil {
		w.attemptNow = *w.fixed
	} else {
		w.attemptNow = time.Now().Truncate(time.Second)
	}
}

// Read returns the bytes for an identifier. The first read during an attempt
// loads from disk; subsequent reads return the cached bytes even if the file
// has changed on disk in the interim.
func (w *World) Read(id FileID) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry, ok := w.cache[id]; ok {
		return entry.data, nil
	}
	data, err := os.ReadFile(w.Abs(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	w.cache[id] = fileEntry{data: data, fingerprint: xxhash.Sum64(data)}
	return data, nil
}

// Fingerprint returns the cached content hash for an identifier, if the file
// has been read this session.
func (w *World) Fingerprint(id FileID) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.cache[id]
	return entry.fingerprint, ok
}

// Invalidate drops the cache entries for the given identifiers. It must only
// be called between compile attempts; the watcher applies it after a cycle
// completes and before triggering the next one.
func (w *World) Invalidate(ids ...FileID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		delete(w.cache, id)
	}
}

// Resolve maps a filesystem path to its logical identifier. Paths under the
// root become root-relative; everything else keeps its absolute path.
func (w *World) Resolve(path string) (FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if rel, err := filepath.Rel(w.root, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return FileID(filepath.ToSlash(rel)), nil
	}
	return FileID(filepath.ToSlash(abs)), nil
}

// Abs returns the absolute filesystem path for an identifier.
func (w *World) Abs(id FileID) string {
	p := filepath.FromSlash(string(id))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.root, p)
}
