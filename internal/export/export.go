// Package export converts a compiled document into output artifacts. Page
// jobs are independent: they run concurrently on a bounded pool, each file is
// written atomically, and one failing page never aborts its siblings.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/typeset/internal/apperr"
	"git.home.luguber.info/inful/typeset/internal/compile"
	"git.home.luguber.info/inful/typeset/internal/render"
)

// PagePlaceholder is the token replaced with the 1-based page number in
// output path patterns.
const PagePlaceholder = "{page}"

// Request describes one export run.
type Request struct {
	Doc     compile.Document
	Format  render.Format
	Pattern string // output path, may contain {page}
	Pages   []int  // 0-based page selection; nil means all pages
	Options render.Options
}

// PageStatus classifies the result of one page job.
type PageStatus string

const (
	StatusWritten PageStatus = "written"
	StatusSkipped PageStatus = "skipped" // artifact cache hit, file untouched
	StatusFailed  PageStatus = "failed"
)

// PageResult is the outcome of one page job.
type PageResult struct {
	Page   int // 0-based; -1 for a combined container file
	Path   string
	Status PageStatus
	Err    error
}

// Report lists every page job's outcome.
type Report struct {
	Format  render.Format
	Results []PageResult
}

// Failed returns the failed page results.
func (r Report) Failed() []PageResult {
	var out []PageResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err summarizes the report: nil when every job succeeded, an
// export-partial error naming the failed pages otherwise.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	pages := make([]string, 0, len(failed))
	for _, f := range failed {
		pages = append(pages, strconv.Itoa(f.Page+1))
	}
	return apperr.Newf(apperr.KindExportPartial,
		"%d of %d pages failed (pages %s)", len(failed), len(r.Results), strings.Join(pages, ", "))
}

// selectPages normalizes the request's page selection to a sorted 0-based
// list, validating the range against the document.
func selectPages(doc compile.Document, pages []int) ([]int, error) {
	total := doc.PageCount()
	if len(pages) == 0 {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 0 || p >= total {
			return nil, fmt.Errorf("page %d out of range: document has %d pages", p+1, total)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out, nil
}

// expandPattern substitutes the page placeholder with a 1-based page number.
func expandPattern(pattern string, page int) string {
	return strings.ReplaceAll(pattern, PagePlaceholder, strconv.Itoa(page+1))
}

// validatePattern enforces the placeholder rule before any export work
// starts: producing more than one file requires {page} in the pattern.
func validatePattern(pattern string, files int) error {
	if files > 1 && !strings.Contains(pattern, PagePlaceholder) {
		return apperr.Newf(apperr.KindExportPattern,
			"output pattern %q must contain %s when exporting %d pages", pattern, PagePlaceholder, files)
	}
	return nil
}

// ParsePages parses a --pages value like "1-3,5" into 0-based page indexes.
// An empty string selects all pages.
func ParsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, ok := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 1 {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		last := first
		if ok {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || last < first {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		}
		for p := first; p <= last; p++ {
			out = append(out, p-1)
		}
	}
	return out, nil
}
