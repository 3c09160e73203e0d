package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverRecordsWarningForUnparsableFont(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a font"), 0o644))

	c := Discover([]string{dir}, false)

	assert.Empty(t, c.List(), "broken font must not enter the catalog")
	warnings := c.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, bad, warnings[0].Path)
	assert.Error(t, warnings[0].Err)
}

func TestDiscoverMissingDirIsNonFatal(t *testing.T) {
	c := Discover([]string{filepath.Join(t.TempDir(), "nope")}, false)
	assert.Empty(t, c.List())
	assert.Len(t, c.Warnings(), 1)
}

func TestDiscoverIgnoresNonFontFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.ttf.bak"), []byte("x"), 0o644))

	c := Discover([]string{dir}, false)
	assert.Empty(t, c.List())
	assert.Empty(t, c.Warnings(), "non-font files are not even candidates")
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	c := &Catalog{faces: []Descriptor{
		{Family: "Libertinus Serif", Style: "Regular"},
		{Family: "Deja Vu Sans", Style: "Book"},
	}}

	got, ok := c.Lookup("libertinus serif")
	require.True(t, ok)
	assert.Equal(t, "Libertinus Serif", got.Family)

	_, ok = c.Lookup("Minion Pro")
	assert.False(t, ok)
}

func TestFallbackIsFirstFace(t *testing.T) {
	empty := &Catalog{}
	_, ok := empty.Fallback()
	assert.False(t, ok)

	c := &Catalog{faces: []Descriptor{{Family: "A"}, {Family: "B"}}}
	got, ok := c.Fallback()
	require.True(t, ok)
	assert.Equal(t, "A", got.Family)
}
