package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SourceFunc fetches the source text for a file identifier. It returns false
// when the text cannot be retrieved (for example the file was deleted between
// compile and render); the renderer then prints the message without position.
type SourceFunc func(file string) ([]byte, bool)

// Renderer writes human-readable diagnostic blocks to a terminal.
// Rendering never fails the run.
type Renderer struct {
	out    io.Writer
	source SourceFunc

	errStyle  lipgloss.Style
	warnStyle lipgloss.Style
	posStyle  lipgloss.Style
	hintStyle lipgloss.Style
}

// NewRenderer builds a renderer. When color is false all styles are plain,
// which also keeps test output deterministic.
func NewRenderer(out io.Writer, source SourceFunc, color bool) *Renderer {
	r := &Renderer{out: out, source: source}
	if color {
		r.errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
		r.warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
		r.posStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
		r.hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	} else {
		plain := lipgloss.NewStyle()
		r.errStyle, r.warnStyle, r.posStyle, r.hintStyle = plain, plain, plain, plain
	}
	return r
}

// Render writes every diagnostic in engine order. The order is preserved
// because the engine may emit a cause before its consequences.
func (r *Renderer) Render(diags []Diagnostic) {
	for _, d := range diags {
		r.renderOne(d)
	}
}

func (r *Renderer) renderOne(d Diagnostic) {
	label := string(d.Severity)
	style := r.errStyle
	if d.Severity == SeverityWarning {
		style = r.warnStyle
	}
	fmt.Fprintf(r.out, "%s: %s\n", style.Render(label), d.Message)

	for _, span := range d.Spans {
		r.renderSpan(span)
	}
	for _, h := range d.Hints {
		fmt.Fprintf(r.out, "  %s %s\n", r.hintStyle.Render("hint:"), h)
	}
}

func (r *Renderer) renderSpan(span Span) {
	src, ok := r.fetch(span.File)
	if !ok {
		fmt.Fprintf(r.out, "  %s\n", r.posStyle.Render("┌─ "+span.File))
		return
	}
	line, col, text := locate(src, span.Start)
	fmt.Fprintf(r.out, "  %s\n", r.posStyle.Render(fmt.Sprintf("┌─ %s:%d:%d", span.File, line, col)))
	fmt.Fprintf(r.out, "  │ %s\n", text)

	width := span.End - span.Start
	if width < 1 {
		width = 1
	}
	if rem := len(text) - (col - 1); width > rem && rem > 0 {
		width = rem
	}
	fmt.Fprintf(r.out, "  │ %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", width))
}

func (r *Renderer) fetch(file string) ([]byte, bool) {
	if r.source == nil {
		return nil, false
	}
	return r.source(file)
}

// locate converts a byte offset into 1-based line/column plus the line's text.
func locate(src []byte, offset int) (line, col int, text string) {
	if offset > len(src) {
		offset = len(src)
	}
	line = 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := len(src)
	for i := lineStart; i < len(src); i++ {
		if src[i] == '\n' {
			lineEnd = i
			break
		}
	}
	return line, offset - lineStart + 1, string(src[lineStart:lineEnd])
}
