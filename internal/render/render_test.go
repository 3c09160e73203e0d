package render

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/typeset/internal/compile"
	"git.home.luguber.info/inful/typeset/internal/engine"
	"git.home.luguber.info/inful/typeset/internal/world"
)

func compileFixture(t *testing.T, source string) compile.Document {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.tsd"), []byte(source), 0o644))
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w, err := world.New(world.Options{Root: root, Entry: "main.tsd", FixedNow: &fixed})
	require.NoError(t, err)
	outcome := engine.NewLayout().Compile(context.Background(), w)
	require.True(t, outcome.OK())
	return outcome.Document
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"pdf", "png", "svg"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, s, f.Extension())
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestOnlyPDFIsMultiPage(t *testing.T) {
	assert.True(t, FormatPDF.MultiPage())
	assert.False(t, FormatPNG.MultiPage())
	assert.False(t, FormatSVG.MultiPage())
}

func TestSVGRenderPage(t *testing.T) {
	doc := compileFixture(t, "hello <world> & co\n")
	r, err := PageRendererFor(FormatSVG)
	require.NoError(t, err)

	out, err := r.RenderPage(doc, 0, Options{})
	require.NoError(t, err)
	svg := string(out)
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "hello &lt;world&gt; &amp; co", "text must be XML-escaped")
}

func TestSVGPageOutOfRange(t *testing.T) {
	doc := compileFixture(t, "only page\n")
	r, err := PageRendererFor(FormatSVG)
	require.NoError(t, err)
	_, err = r.RenderPage(doc, 5, Options{})
	assert.Error(t, err)
}

func TestPNGRenderPageDecodes(t *testing.T) {
	doc := compileFixture(t, "raster me\n")
	r, err := PageRendererFor(FormatPNG)
	require.NoError(t, err)

	out, err := r.RenderPage(doc, 0, Options{})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 595, img.Bounds().Dx())
	assert.Equal(t, 842, img.Bounds().Dy())
}

func TestPNGScale(t *testing.T) {
	doc := compileFixture(t, "x\n")
	r, err := PageRendererFor(FormatPNG)
	require.NoError(t, err)

	out, err := r.RenderPage(doc, 0, Options{Scale: 2})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1190, img.Bounds().Dx())
}

func TestPDFRenderDocument(t *testing.T) {
	doc := compileFixture(t, "p1\n#pagebreak\np2 (with parens)\n#pagebreak\np3\n")
	r, err := DocumentRendererFor(FormatPDF)
	require.NoError(t, err)

	out, err := r.RenderDocument(doc, nil, Options{})
	require.NoError(t, err)
	pdf := string(out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-1.4")))
	assert.Contains(t, pdf, "/Count 3")
	assert.Contains(t, pdf, `p2 \(with parens\)`, "parentheses must be escaped in content streams")
	assert.Contains(t, pdf, "D:20240301120000", "creation date comes from the frozen instant")
	assert.Contains(t, pdf, "%%EOF")
}

func TestPDFRenderDocumentPageSelection(t *testing.T) {
	doc := compileFixture(t, "first\n#pagebreak\nsecond\n#pagebreak\nthird\n")
	r, err := DocumentRendererFor(FormatPDF)
	require.NoError(t, err)

	out, err := r.RenderDocument(doc, []int{1}, Options{})
	require.NoError(t, err)
	pdf := string(out)
	assert.Contains(t, pdf, "/Count 1")
	assert.Contains(t, pdf, "(second)")
	assert.NotContains(t, pdf, "(first)")
	assert.NotContains(t, pdf, "(third)")
}

func TestPDFRenderDocumentPageOutOfRange(t *testing.T) {
	doc := compileFixture(t, "only\n")
	r, err := DocumentRendererFor(FormatPDF)
	require.NoError(t, err)

	_, err = r.RenderDocument(doc, []int{4}, Options{})
	assert.Error(t, err)
}

func TestPDFDeterministicWithFixedTimestamp(t *testing.T) {
	source := "same\n"
	r, err := DocumentRendererFor(FormatPDF)
	require.NoError(t, err)

	first, err := r.RenderDocument(compileFixture(t, source), nil, Options{})
	require.NoError(t, err)
	second, err := r.RenderDocument(compileFixture(t, source), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "fixed timestamp must yield byte-identical output")
}

func TestRendererLookupMismatch(t *testing.T) {
	_, err := PageRendererFor(FormatPDF)
	assert.Error(t, err, "pdf is a container format")
	_, err = DocumentRendererFor(FormatSVG)
	assert.Error(t, err)
}

type foreignDoc struct{}

func (foreignDoc) PageCount() int { return 1 }

func TestForeignDocumentIsRenderError(t *testing.T) {
	r, err := PageRendererFor(FormatSVG)
	require.NoError(t, err)
	_, err = r.RenderPage(foreignDoc{}, 0, Options{})
	assert.Error(t, err)
}
