package artifactcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStoreAndUpToDate(t *testing.T) {
	c := openTestCache(t)
	artifact := filepath.Join(t.TempDir(), "out-1.png")
	require.NoError(t, os.WriteFile(artifact, []byte("png bytes"), 0o644))

	assert.False(t, c.UpToDate(artifact, 42), "unknown path is never up to date")

	require.NoError(t, c.Store(artifact, 42))
	assert.True(t, c.UpToDate(artifact, 42))
	assert.False(t, c.UpToDate(artifact, 43), "changed fingerprint misses")
}

func TestUpToDateRequiresFileOnDisk(t *testing.T) {
	c := openTestCache(t)
	artifact := filepath.Join(t.TempDir(), "out-1.png")
	require.NoError(t, c.Store(artifact, 7))

	assert.False(t, c.UpToDate(artifact, 7), "a deleted artifact must be rewritten")
}

func TestStoreOverwrites(t *testing.T) {
	c := openTestCache(t)
	artifact := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0o644))

	require.NoError(t, c.Store(artifact, 1))
	require.NoError(t, c.Store(artifact, 2))
	assert.False(t, c.UpToDate(artifact, 1))
	assert.True(t, c.UpToDate(artifact, 2))
}

func TestForget(t *testing.T) {
	c := openTestCache(t)
	artifact := filepath.Join(t.TempDir(), "out.svg")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0o644))
	require.NoError(t, c.Store(artifact, 9))
	require.NoError(t, c.Forget(artifact))
	assert.False(t, c.UpToDate(artifact, 9))
}

func TestNilCacheIsMiss(t *testing.T) {
	var c *Cache
	assert.False(t, c.UpToDate("x", 1))
	assert.NoError(t, c.Store("x", 1))
	assert.NoError(t, c.Forget("x"))
	assert.NoError(t, c.Close())
}
