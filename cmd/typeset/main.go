package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"git.home.luguber.info/inful/typeset/internal/apperr"
	"git.home.luguber.info/inful/typeset/internal/compile"
	"git.home.luguber.info/inful/typeset/internal/config"
	"git.home.luguber.info/inful/typeset/internal/diag"
	"git.home.luguber.info/inful/typeset/internal/engine"
	"git.home.luguber.info/inful/typeset/internal/export"
	"git.home.luguber.info/inful/typeset/internal/export/artifactcache"
	"git.home.luguber.info/inful/typeset/internal/metrics"
	"git.home.luguber.info/inful/typeset/internal/render"
	"git.home.luguber.info/inful/typeset/internal/update"
	"git.home.luguber.info/inful/typeset/internal/version"
	"git.home.luguber.info/inful/typeset/internal/watch"
	"git.home.luguber.info/inful/typeset/internal/world"
	"git.home.luguber.info/inful/typeset/internal/world/fonts"
)

// compileFlags are shared between the compile and watch commands.
type compileFlags struct {
	Input     string   `arg:"" help:"Entry document"`
	Output    string   `arg:"" optional:"" help:"Output path; may contain {page}"`
	Format    string   `short:"f" default:"pdf" enum:"pdf,png,svg" help:"Output format"`
	Pages     string   `short:"p" help:"Page selection, e.g. 1-3,7 (default all)"`
	Root      string   `help:"Session root directory (default from config, else .)"`
	FontPath  []string `name:"font-path" help:"Additional font search directory (repeatable)"`
	Timestamp *int64   `help:"Pin the document timestamp to a Unix instant for reproducible output"`
	Scale     float64  `default:"0" help:"Raster scale factor for PNG output"`
}

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"typeset.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Compile struct {
		compileFlags
	} `cmd:"" help:"Compile a document once and export it"`

	Watch struct {
		compileFlags
		Debounce    int    `help:"Debounce window in milliseconds (default from config, else 150)"`
		MetricsAddr string `help:"Serve Prometheus metrics on this address while watching"`
	} `cmd:"" help:"Recompile and re-export whenever a dependency changes"`

	Fonts struct {
		FontPath    []string `name:"font-path" help:"Additional font search directory (repeatable)"`
		Diagnostics bool     `help:"Also list font files that failed to parse"`
	} `cmd:"" help:"List the discovered font catalog"`

	Update struct {
		Channel string `help:"Release channel (default from config, else stable)"`
		BaseURL string `name:"base-url" help:"Release server base URL"`
		Staged  bool   `help:"Stage the new binary for the next start instead of replacing in place"`
	} `cmd:"" help:"Update the typeset binary to the latest release"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("typeset"),
		kong.Description("Document compiler with incremental watch mode and multi-format export."),
		kong.Vars{"version": fmt.Sprintf("typeset %s (commit %s, built %s)", version.Version, version.GitCommit, version.BuildTime)},
	)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch {
	case strings.HasPrefix(ctx.Command(), "compile"):
		err = runCompile(CLI.Compile.compileFlags)
	case strings.HasPrefix(ctx.Command(), "watch"):
		err = runWatch(CLI.Watch.compileFlags, CLI.Watch.Debounce, CLI.Watch.MetricsAddr)
	case ctx.Command() == "fonts":
		err = runFonts(CLI.Fonts.FontPath, CLI.Fonts.Diagnostics)
	case ctx.Command() == "update":
		err = runUpdate(CLI.Update.Channel, CLI.Update.BaseURL, CLI.Update.Staged)
	}
	if err != nil {
		// Diagnostics were already rendered in full; everything else gets
		// one structured log line.
		if apperr.KindOf(err) != apperr.KindDiagnostic {
			slog.Error("Command failed", "error", err)
		}
		os.Exit(apperr.ExitCode(err))
	}
}

// session bundles everything one compile or watch run needs.
type session struct {
	cfg     *config.Config
	world   *world.World
	driver  *compile.Driver
	request export.Request
}

func newSession(flags compileFlags) (*session, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "load configuration")
	}

	root := cfg.Root
	if flags.Root != "" {
		root = flags.Root
	}
	fixed := cfg.FixedNow()
	if flags.Timestamp != nil {
		t := time.Unix(*flags.Timestamp, 0).UTC()
		fixed = &t
	}

	entryPath := flags.Input
	if !filepath.IsAbs(entryPath) && root != "" {
		entryPath = filepath.Join(root, entryPath)
	}
	if _, err := os.Stat(entryPath); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInput, fmt.Sprintf("input %s", flags.Input))
	}

	w, err := world.New(world.Options{
		Root:          root,
		Entry:         flags.Input,
		FontPaths:     append(append([]string{}, cfg.FontPaths...), flags.FontPath...),
		EmbeddedFonts: *cfg.EmbeddedFonts,
		FixedNow:      fixed,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInput, "open session")
	}
	for _, fw := range w.Fonts().Warnings() {
		slog.Warn("Font file skipped", "path", fw.Path, "error", fw.Err)
	}

	format, err := render.ParseFormat(flags.Format)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "parse format")
	}
	var pages []int
	if flags.Pages != "" {
		pages, err = export.ParsePages(flags.Pages)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, "parse page selection")
		}
	}
	scale := cfg.Export.Scale
	if flags.Scale != 0 {
		scale = flags.Scale
	}

	return &session{
		cfg:    cfg,
		world:  w,
		driver: compile.NewDriver(engine.NewLayout(), w, nil),
		request: export.Request{
			Format:  format,
			Pattern: outputPattern(flags.Output, flags.Input, format),
			Pages:   pages,
			Options: render.Options{Scale: scale},
		},
	}, nil
}

// outputPattern derives the export pattern when no output argument is given:
// the input stem with the format's extension, per-page formats getting a
// page number suffix.
func outputPattern(output, input string, format render.Format) string {
	if output != "" {
		return output
	}
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	if format.MultiPage() {
		return stem + "." + format.Extension()
	}
	return stem + "-" + export.PagePlaceholder + "." + format.Extension()
}

func (s *session) renderer() *diag.Renderer {
	source := func(file string) ([]byte, bool) {
		data, err := s.world.Read(world.FileID(file))
		return data, err == nil
	}
	color := term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == ""
	return diag.NewRenderer(os.Stderr, source, color)
}

// exportOutcome runs the export pipeline for a successful compile.
func (s *session) exportOutcome(ctx context.Context, doc compile.Document, cache *artifactcache.Cache, recorder metrics.Recorder) error {
	req := s.request
	req.Doc = doc
	report, err := export.Run(ctx, req, cache, recorder)
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		switch res.Status {
		case export.StatusWritten:
			slog.Info("Wrote artifact", "path", res.Path)
		case export.StatusSkipped:
			slog.Debug("Artifact up to date", "path", res.Path)
		case export.StatusFailed:
			slog.Error("Page export failed", "path", res.Path, "error", res.Err)
		}
	}
	return report.Err()
}

func runCompile(flags compileFlags) error {
	s, err := newSession(flags)
	if err != nil {
		return err
	}
	ctx := context.Background()

	outcome := s.driver.Run(ctx)
	rend := s.renderer()
	rend.Render(outcome.Warnings)
	if !outcome.OK() {
		rend.Render(outcome.Diagnostics)
		return apperr.Newf(apperr.KindDiagnostic, "%d diagnostic(s)", len(outcome.Diagnostics))
	}

	var cache *artifactcache.Cache
	if dir := s.cfg.Export.CacheDir; dir != "" {
		cache, err = artifactcache.Open(filepath.Join(dir, "artifacts.db"))
		if err != nil {
			slog.Warn("Artifact cache unavailable", "error", err)
		}
		defer cache.Close()
	}
	return s.exportOutcome(ctx, outcome.Document, cache, metrics.NoopRecorder{})
}

func runWatch(flags compileFlags, debounceMS int, metricsAddr string) error {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var registry *prom.Registry

	s, err := newSession(flags)
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = s.cfg.Watch.MetricsAddr
	}
	if metricsAddr != "" {
		registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
		s.driver = compile.NewDriver(engine.NewLayout(), s.world, recorder)
	}

	debounce, err := watchDebounce(s.cfg, debounceMS)
	if err != nil {
		return err
	}

	cache := openWatchCache(s.cfg)
	defer cache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if registry != nil {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.HTTPHandler(registry)}
		go func() {
			slog.Info("Serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	rend := s.renderer()
	onCycle := func(outcome compile.Outcome) {
		rend.Render(outcome.Warnings)
		if !outcome.OK() {
			rend.Render(outcome.Diagnostics)
			slog.Info("Waiting for changes", "state", s.driver.State())
			return
		}
		if err := s.exportOutcome(ctx, outcome.Document, cache, recorder); err != nil {
			slog.Error("Export failed", "error", err)
		}
		slog.Info("Waiting for changes", "state", s.driver.State())
	}

	wt, err := watch.New(s.world, s.driver, watch.Options{
		Debounce: debounce,
		Recorder: recorder,
		OnCycle:  onCycle,
	})
	if err != nil {
		return err
	}
	defer wt.Close()

	slog.Info("Watching", "entry", s.world.Entry(), "root", s.world.Root(), "debounce", debounce)
	if err := wt.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("Watch stopped")
	return nil
}

// watchDebounce merges the --debounce flag into the config so the flag passes
// the same range validation as the file and env settings.
func watchDebounce(cfg *config.Config, flagMS int) (time.Duration, error) {
	if flagMS != 0 {
		cfg.Watch.DebounceMS = flagMS
		if err := cfg.Validate(); err != nil {
			return 0, apperr.Wrap(err, apperr.KindConfig, "invalid debounce")
		}
	}
	return cfg.Debounce(), nil
}

// openWatchCache opens the artifact cache for watch mode, falling back to the
// user cache directory. A nil cache just disables skip-if-unchanged.
func openWatchCache(cfg *config.Config) *artifactcache.Cache {
	dir := cfg.Export.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			slog.Warn("No user cache directory, artifact cache disabled", "error", err)
			return nil
		}
		dir = filepath.Join(base, "typeset")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Artifact cache unavailable", "error", err)
		return nil
	}
	cache, err := artifactcache.Open(filepath.Join(dir, "artifacts.db"))
	if err != nil {
		slog.Warn("Artifact cache unavailable", "error", err)
		return nil
	}
	return cache
}

func runFonts(fontPaths []string, diagnostics bool) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return apperr.Wrap(err, apperr.KindConfig, "load configuration")
	}
	catalog := fonts.Discover(append(append([]string{}, cfg.FontPaths...), fontPaths...), *cfg.EmbeddedFonts)

	for _, face := range catalog.List() {
		origin := face.Path
		if face.Embedded {
			origin = "(embedded)"
		}
		fmt.Printf("%-32s %-16s %s\n", face.Family, face.Style, origin)
	}
	if diagnostics {
		for _, w := range catalog.Warnings() {
			fmt.Printf("warning: %s: %v\n", w.Path, w.Err)
		}
	}
	return nil
}

func runUpdate(channel, baseURL string, staged bool) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return apperr.Wrap(err, apperr.KindConfig, "load configuration")
	}
	if channel == "" {
		channel = cfg.Update.Channel
	}
	if baseURL == "" {
		baseURL = cfg.Update.BaseURL
	}
	var strategy update.Strategy
	if staged {
		strategy = update.StagedStrategy{}
	}
	return update.Run(context.Background(), update.Options{
		BaseURL:  baseURL,
		Channel:  channel,
		Strategy: strategy,
	})
}
