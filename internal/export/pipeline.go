package export

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/typeset/internal/export/artifactcache"
	"git.home.luguber.info/inful/typeset/internal/metrics"
	"git.home.luguber.info/inful/typeset/internal/render"
)

// fingerprinted is implemented by documents that can hash individual pages;
// it enables the artifact cache. Documents without it are always rewritten.
type fingerprinted interface {
	PageFingerprint(i int) uint64
}

// Run executes one export request and blocks until every dispatched job has
// completed. cache may be nil; recorder may be nil.
func Run(ctx context.Context, req Request, cache *artifactcache.Cache, recorder metrics.Recorder) (Report, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	start := time.Now()
	report := Report{Format: req.Format}

	pages, err := selectPages(req.Doc, req.Pages)
	if err != nil {
		return report, err
	}

	if req.Format.MultiPage() {
		report.Results = []PageResult{runContainer(req, pages, cache)}
	} else {
		if err := validatePattern(req.Pattern, len(pages)); err != nil {
			return report, err
		}
		report.Results, err = runPages(ctx, req, pages, cache, recorder)
		if err != nil {
			return report, err
		}
	}

	for _, res := range report.Results {
		recorder.IncExportPage(string(req.Format), string(res.Status))
	}
	recorder.ObserveExportDuration(string(req.Format), time.Since(start))
	return report, report.Err()
}

// runContainer renders the selected pages into one multi-page file.
func runContainer(req Request, pages []int, cache *artifactcache.Cache) PageResult {
	res := PageResult{Page: -1, Path: expandPattern(req.Pattern, 0)}

	r, err := render.DocumentRendererFor(req.Format)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if fp, ok := documentFingerprint(req.Doc, pages); ok && cache.UpToDate(res.Path, fp) {
		res.Status = StatusSkipped
		return res
	}
	data, err := r.RenderDocument(req.Doc, pages, req.Options)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if err := writeFileAtomic(res.Path, data); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.Status = StatusWritten
	if fp, ok := documentFingerprint(req.Doc, pages); ok {
		if err := cache.Store(res.Path, fp); err != nil {
			slog.Debug("artifact cache store failed", "path", res.Path, "error", err)
		}
	}
	return res
}

// runPages dispatches independent page jobs onto a pool bounded to available
// parallelism and joins them all before returning. A failing job records its
// error and lets siblings finish.
func runPages(ctx context.Context, req Request, pages []int, cache *artifactcache.Cache, recorder metrics.Recorder) ([]PageResult, error) {
	r, err := render.PageRendererFor(req.Format)
	if err != nil {
		return nil, err
	}

	workers := runtime.GOMAXPROCS(0)
	recorder.SetExportConcurrency(workers)

	results := make([]PageResult, len(pages))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, page := range pages {
		g.Go(func() error {
			res := exportPage(ctx, r, req, page, cache)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil // failures are per-page results, never group aborts
		})
	}
	_ = g.Wait()
	return results, nil
}

func exportPage(ctx context.Context, r render.PageRenderer, req Request, page int, cache *artifactcache.Cache) PageResult {
	res := PageResult{Page: page, Path: expandPattern(req.Pattern, page)}
	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	if doc, ok := req.Doc.(fingerprinted); ok && cache.UpToDate(res.Path, doc.PageFingerprint(page)) {
		res.Status = StatusSkipped
		return res
	}
	data, err := r.RenderPage(req.Doc, page, req.Options)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if err := writeFileAtomic(res.Path, data); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	res.Status = StatusWritten
	if doc, ok := req.Doc.(fingerprinted); ok {
		if err := cache.Store(res.Path, doc.PageFingerprint(page)); err != nil {
			slog.Debug("artifact cache store failed", "path", res.Path, "error", err)
		}
	}
	return res
}

// documentFingerprint combines the selected pages' fingerprints for container
// formats; a different selection yields a different fingerprint.
func documentFingerprint(doc any, pages []int) (uint64, bool) {
	fp, ok := doc.(fingerprinted)
	if !ok {
		return 0, false
	}
	var combined uint64
	for _, p := range pages {
		combined = combined*1099511628211 ^ fp.PageFingerprint(p)
	}
	return combined, true
}
