// Package fonts discovers the font catalog presented to the compile engine.
//
// Discovery walks the configured search directories (and optionally the fonts
// embedded in the binary) and parses each candidate's naming table. A font
// that fails to parse is recorded as a warning on the catalog and skipped;
// discovery never fails the session.
package fonts

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font/sfnt"
)

// Descriptor describes one discovered font face.
type Descriptor struct {
	Family   string
	Style    string
	Path     string // absolute path; empty for embedded fonts
	Index    int    // face index within a collection file
	Embedded bool
}

// Warning records a font file that could not be used.
type Warning struct {
	Path string
	Err  error
}

// Catalog is the ordered set of discovered fonts. Embedded fonts sort first,
// then each search directory in configuration order, lexicographic within a
// directory. The order is part of the compile input: fallback substitution
// picks the first matching face.
type Catalog struct {
	faces    []Descriptor
	warnings []Warning
}

var fontExtensions = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
}

// Discover builds the catalog from the embedded set and the given directories.
func Discover(dirs []string, includeEmbedded bool) *Catalog {
	c := &Catalog{}
	if includeEmbedded {
		c.discoverEmbedded()
	}
	for _, dir := range dirs {
		c.discoverDir(dir)
	}
	return c
}

// List returns the catalog in discovery order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, len(c.faces))
	copy(out, c.faces)
	return out
}

// Warnings returns the non-fatal discovery failures.
func (c *Catalog) Warnings() []Warning {
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Lookup returns the first face matching the family, case-insensitively.
func (c *Catalog) Lookup(family string) (Descriptor, bool) {
	for _, f := range c.faces {
		if strings.EqualFold(f.Family, family) {
			return f, true
		}
	}
	return Descriptor{}, false
}

// Fallback returns the substitution face used when a requested family is
// missing: the first face in the catalog.
func (c *Catalog) Fallback() (Descriptor, bool) {
	if len(c.faces) == 0 {
		return Descriptor{}, false
	}
	return c.faces[0], true
}

func (c *Catalog) discoverDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.warn(dir, err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !fontExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			c.warn(path, err)
			continue
		}
		c.addFaces(path, data, false)
	}
}

func (c *Catalog) discoverEmbedded() {
	err := fs.WalkDir(embeddedFS, "embedded", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !fontExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		data, readErr := fs.ReadFile(embeddedFS, path)
		if readErr != nil {
			c.warn(path, readErr)
			return nil
		}
		c.addEmbedded(path, data)
		return nil
	})
	if err != nil {
		slog.Debug("embedded font walk failed", "error", err)
	}
}

func (c *Catalog) addEmbedded(path string, data []byte) {
	before := len(c.faces)
	c.addFaces(path, data, true)
	for i := before; i < len(c.faces); i++ {
		c.faces[i].Path = ""
		c.faces[i].Embedded = true
	}
}

func (c *Catalog) addFaces(path string, data []byte, embedded bool) {
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := sfnt.ParseCollection(data)
		if err != nil {
			c.warn(path, err)
			return
		}
		for i := 0; i < coll.NumFonts(); i++ {
			f, err := coll.Font(i)
			if err != nil {
				c.warn(path, fmt.Errorf("face %d: %w", i, err))
				continue
			}
			c.add(f, path, i, embedded)
		}
		return
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		c.warn(path, err)
		return
	}
	c.add(f, path, 0, embedded)
}

func (c *Catalog) add(f *sfnt.Font, path string, index int, embedded bool) {
	var buf sfnt.Buffer
	family, err := f.Name(&buf, sfnt.NameIDFamily)
	if err != nil || family == "" {
		// Naming table unusable; fall back to the file name.
		family = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	style, err := f.Name(&buf, sfnt.NameIDSubfamily)
	if err != nil {
		style = ""
	}
	c.faces = append(c.faces, Descriptor{
		Family:   family,
		Style:    style,
		Path:     path,
		Index:    index,
		Embedded: embedded,
	})
}

func (c *Catalog) warn(path string, err error) {
	slog.Debug("skipping font", "path", path, "error", err)
	c.warnings = append(c.warnings, Warning{Path: path, Err: err})
}
