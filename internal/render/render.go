// Package render turns compiled pages into output bytes. The three built-in
// renderers are intentionally minimal; the export pipeline only depends on
// the renderer contracts, not on any concrete engine.
package render

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/typeset/internal/compile"
)

// Format is an output format accepted on the command line.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPDF, FormatPNG, FormatSVG:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format: %q (want pdf, png or svg)", s)
}

// MultiPage reports whether the format is a multi-page container producing
// one combined file regardless of page count.
func (f Format) MultiPage() bool { return f == FormatPDF }

// Extension returns the file extension without the dot.
func (f Format) Extension() string { return string(f) }

// Options tune rendering. The zero value uses defaults.
type Options struct {
	// Scale multiplies the raster resolution for PNG output. 0 means 1.0.
	Scale float64
}

// PageRenderer renders a single page of a document.
type PageRenderer interface {
	RenderPage(doc compile.Document, page int, opts Options) ([]byte, error)
}

// DocumentRenderer renders a document into one container file holding the
// selected pages (0-based); nil means every page.
type DocumentRenderer interface {
	RenderDocument(doc compile.Document, pages []int, opts Options) ([]byte, error)
}

// PageRendererFor returns the per-page renderer for a format.
func PageRendererFor(f Format) (PageRenderer, error) {
	switch f {
	case FormatPNG:
		return pngRenderer{}, nil
	case FormatSVG:
		return svgRenderer{}, nil
	}
	return nil, fmt.Errorf("format %q has no per-page renderer", f)
}

// DocumentRendererFor returns the container renderer for a format.
func DocumentRendererFor(f Format) (DocumentRenderer, error) {
	if f == FormatPDF {
		return pdfRenderer{}, nil
	}
	return nil, fmt.Errorf("format %q has no container renderer", f)
}

// pageSource is what the built-in renderers need from a document. The
// built-in engine's Document satisfies it; handing these renderers any other
// engine's document is a render error, not a crash.
type pageSource interface {
	compile.Document
	Page(i int) []string
	Font() string
	CreatedAt() time.Time
}

func asPageSource(doc compile.Document) (pageSource, error) {
	src, ok := doc.(pageSource)
	if !ok {
		return nil, fmt.Errorf("document type %T does not expose page content", doc)
	}
	return src, nil
}
