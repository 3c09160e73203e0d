// Package engine contains the built-in document engine behind the compile
// boundary. It is deliberately small: line-oriented input, an include
// directive, a font directive, and page breaking. The orchestration layer
// treats it as opaque; any engine implementing compile.Engine can replace it.
package engine

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Document is the immutable compiled representation. It is superseded, never
// patched, on recompilation.
type Document struct {
	pages     [][]string
	font      string
	createdAt time.Time
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the lines of the 0-based page index.
func (d *Document) Page(i int) []string {
	out := make([]string, len(d.pages[i]))
	copy(out, d.pages[i])
	return out
}

// Font returns the resolved font family for the document.
func (d *Document) Font() string { return d.font }

// CreatedAt returns the world instant the document was compiled under. With a
// fixed session timestamp this makes repeated exports byte-identical.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// PageFingerprint returns a stable content hash for one page, covering the
// page text, the resolved font, the creation instant, and the page number.
func (d *Document) PageFingerprint(i int) uint64 {
	h := xxhash.New()
	var num [8]byte
	binary.LittleEndian.PutUint64(num[:], uint64(i))
	_, _ = h.Write(num[:])
	binary.LittleEndian.PutUint64(num[:], uint64(d.createdAt.Unix()))
	_, _ = h.Write(num[:])
	_, _ = h.WriteString(d.font)
	for _, line := range d.pages[i] {
		_, _ = h.WriteString(line)
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
