package engine

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"git.home.luguber.info/inful/typeset/internal/compile"
	"git.home.luguber.info/inful/typeset/internal/diag"
	"git.home.luguber.info/inful/typeset/internal/world"
)

const defaultLinesPerPage = 40

// Layout is the built-in engine. Safe for reuse across compile attempts from
// a single driver; Dependencies reports the files the last attempt read.
type Layout struct {
	LinesPerPage int

	mu   sync.Mutex
	deps compile.DependencySet
}

// NewLayout returns an engine with default page geometry.
func NewLayout() *Layout {
	return &Layout{LinesPerPage: defaultLinesPerPage}
}

// Dependencies returns the file identifiers read by the most recent compile
// attempt, success or failure.
func (l *Layout) Dependencies() compile.DependencySet {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deps == nil {
		return compile.NewDependencySet()
	}
	return l.deps.Clone()
}

// Compile reads the entry file from the world, expands includes, resolves the
// requested font against the catalog, and paginates. Output depends only on
// world contents and the world's frozen instant.
func (l *Layout) Compile(ctx context.Context, w *world.World) compile.Outcome {
	c := &compilation{
		world:        w,
		linesPerPage: l.LinesPerPage,
		deps:         compile.NewDependencySet(),
		active:       make(map[world.FileID]bool),
	}
	if c.linesPerPage <= 0 {
		c.linesPerPage = defaultLinesPerPage
	}

	doc := c.run(ctx)

	l.mu.Lock()
	l.deps = c.deps
	l.mu.Unlock()

	if diag.HasErrors(c.diags) {
		return compile.Failure(c.diags)
	}
	return compile.Success(doc, c.diags)
}

type compilation struct {
	world        *world.World
	linesPerPage int
	deps         compile.DependencySet
	active       map[world.FileID]bool
	diags        []diag.Diagnostic

	font  string
	pages [][]string
	page  []string
}

func (c *compilation) run(ctx context.Context) *Document {
	entry := c.world.Entry()
	c.deps.Add(entry)
	src, err := c.world.Read(entry)
	if err != nil {
		c.errorf(nil, "file not found: %s", entry)
		return nil
	}

	c.expand(ctx, entry, src)
	c.flushPage()
	if len(c.pages) == 0 {
		c.pages = [][]string{{}}
	}

	font := c.resolveFont()
	return &Document{pages: c.pages, font: font, createdAt: c.world.Now()}
}

// expand walks one file line by line, splicing includes in place.
func (c *compilation) expand(ctx context.Context, id world.FileID, src []byte) {
	if c.active[id] {
		c.errorf(nil, "include cycle through %s", id)
		return
	}
	c.active[id] = true
	defer delete(c.active, id)

	offset := 0
	for _, line := range strings.SplitAfter(string(src), "\n") {
		if ctx.Err() != nil {
			return
		}
		lineStart := offset
		offset += len(line)
		text := strings.TrimSuffix(line, "\n")

		switch {
		case strings.HasPrefix(text, "#include "):
			c.include(ctx, id, text, lineStart)
		case strings.HasPrefix(text, "#font "):
			if name, _, ok := directiveArg(text, "#font "); ok {
				c.font = name
			} else {
				c.errorf(span(id, lineStart, len(text)), "malformed #font directive")
			}
		case text == "#pagebreak" || text == "\f":
			c.flushPage()
		case text == "" && offset == len(src):
			// trailing newline artifact, not a content line
		default:
			c.emit(text)
		}
	}
}

func (c *compilation) include(ctx context.Context, from world.FileID, text string, lineStart int) {
	rel, argOffset, ok := directiveArg(text, "#include ")
	if !ok {
		c.errorf(span(from, lineStart, len(text)), "malformed #include directive")
		return
	}
	argSpan := &diag.Span{
		File:  string(from),
		Start: lineStart + argOffset,
		End:   lineStart + argOffset + len(rel) + 2, // quotes included
	}

	target := world.FileID(path.Join(path.Dir(string(from)), rel))
	c.deps.Add(target)
	src, err := c.world.Read(target)
	if err != nil {
		c.errorf(argSpan, "file not found: %s", rel)
		return
	}
	if c.active[target] {
		c.errorf(argSpan, "include cycle through %s", target)
		return
	}
	c.expand(ctx, target, src)
}

func (c *compilation) resolveFont() string {
	catalog := c.world.Fonts()
	if c.font == "" {
		if fb, ok := catalog.Fallback(); ok {
			c.addFontDep(fb.Path)
			return fb.Family
		}
		return "builtin"
	}
	if face, ok := catalog.Lookup(c.font); ok {
		c.addFontDep(face.Path)
		return face.Family
	}
	// Missing family is recoverable: substitute and warn, never fail the
	// compile over it.
	fb, ok := catalog.Fallback()
	if !ok {
		c.warnf("font family not found: %s, substituting builtin", c.font)
		return "builtin"
	}
	c.addFontDep(fb.Path)
	c.warnf("font family not found: %s, substituting %s", c.font, fb.Family)
	return fb.Family
}

func (c *compilation) addFontDep(fontPath string) {
	if fontPath == "" {
		return // embedded faces have no on-disk path to watch
	}
	if id, err := c.world.Resolve(fontPath); err == nil {
		c.deps.Add(id)
	}
}

func (c *compilation) emit(line string) {
	c.page = append(c.page, line)
	if len(c.page) >= c.linesPerPage {
		c.flushPage()
	}
}

func (c *compilation) flushPage() {
	if len(c.page) == 0 {
		return
	}
	c.pages = append(c.pages, c.page)
	c.page = nil
}

func (c *compilation) errorf(s *diag.Span, format string, args ...any) {
	d := diag.Diagnostic{Severity: diag.SeverityError, Message: fmt.Sprintf(format, args...)}
	if s != nil {
		d.Spans = []diag.Span{*s}
	}
	c.diags = append(c.diags, d)
}

func (c *compilation) warnf(format string, args ...any) {
	c.diags = append(c.diags, diag.Warning(fmt.Sprintf(format, args...)))
}

func span(id world.FileID, start, length int) *diag.Span {
	return &diag.Span{File: string(id), Start: start, End: start + length}
}

// directiveArg extracts the quoted argument of a directive line, returning the
// argument, the byte offset of its opening quote within the line, and whether
// the line was well formed.
func directiveArg(text, prefix string) (arg string, offset int, ok bool) {
	rest := strings.TrimPrefix(text, prefix)
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", 0, false
	}
	arg = rest[1 : len(rest)-1]
	if arg == "" {
		return "", 0, false
	}
	return arg, strings.Index(text, `"`), true
}
