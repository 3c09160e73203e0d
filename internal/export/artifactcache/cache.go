// Package artifactcache persists page fingerprints for exported artifacts so
// watch mode can skip rewriting pages whose content did not change.
//
// The cache is best-effort: every method on a nil *Cache is a no-op miss, and
// a cache failure only costs a redundant write.
package artifactcache

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	path        TEXT PRIMARY KEY,
	fingerprint INTEGER NOT NULL,
	updated_at  TEXT NOT NULL
);`

// Cache is a sqlite-backed artifact fingerprint store.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init artifact cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// UpToDate reports whether the stored fingerprint for path matches fp and
// the file still exists on disk.
func (c *Cache) UpToDate(path string, fp uint64) bool {
	if c == nil {
		return false
	}
	var stored int64
	err := c.db.QueryRow(`SELECT fingerprint FROM artifacts WHERE path = ?`, path).Scan(&stored)
	if err != nil {
		return false
	}
	if uint64(stored) != fp {
		return false
	}
	return fileExists(path)
}

// Store records the fingerprint for an artifact that was just written.
func (c *Cache) Store(path string, fp uint64) error {
	if c == nil {
		return nil
	}
	_, err := c.db.Exec(
		`INSERT INTO artifacts (path, fingerprint, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		path, int64(fp), time.Now().UTC().Format(time.RFC3339))
	return err
}

// Forget drops the record for a path, forcing the next export to write it.
func (c *Cache) Forget(path string) error {
	if c == nil {
		return nil
	}
	_, err := c.db.Exec(`DELETE FROM artifacts WHERE path = ?`, path)
	return err
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
