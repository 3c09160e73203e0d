// Package config loads the typeset configuration: an optional YAML file,
// overlaid by TYPESET_* environment variables, overlaid by command-line
// flags (applied by the caller). Defaults are filled in before validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "typeset.yaml"

// Config is the application configuration.
type Config struct {
	Root          string   `yaml:"root,omitempty"`
	FontPaths     []string `yaml:"font_paths,omitempty"`
	EmbeddedFonts *bool    `yaml:"embedded_fonts,omitempty"`
	// Timestamp pins the compile clock to a fixed Unix instant for
	// reproducible output. Unset means wall-clock time.
	Timestamp *int64 `yaml:"timestamp,omitempty"`

	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Export ExportConfig `yaml:"export,omitempty"`
	Update UpdateConfig `yaml:"update,omitempty"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	DebounceMS  int    `yaml:"debounce_ms,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	// CacheDir holds the artifact fingerprint database. Empty disables
	// the cache for one-shot compiles; watch mode falls back to the user
	// cache directory.
	CacheDir string  `yaml:"cache_dir,omitempty"`
	Scale    float64 `yaml:"scale,omitempty"`
}

// UpdateConfig configures the self-update release source.
type UpdateConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// Load reads the config file (a missing default file is fine), applies env
// overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultFile:
		// Optional default file; flags and env carry the configuration.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TYPESET_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("TYPESET_FONT_PATHS"); v != "" {
		c.FontPaths = append(c.FontPaths, strings.Split(v, string(os.PathListSeparator))...)
	}
	if v := os.Getenv("TYPESET_METRICS_ADDR"); v != "" {
		c.Watch.MetricsAddr = v
	}
	if v := os.Getenv("TYPESET_CACHE_DIR"); v != "" {
		c.Export.CacheDir = v
	}
	if v := os.Getenv("TYPESET_UPDATE_BASE_URL"); v != "" {
		c.Update.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.EmbeddedFonts == nil {
		on := true
		c.EmbeddedFonts = &on
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = 150
	}
	if c.Export.Scale == 0 {
		c.Export.Scale = 1.0
	}
	if c.Update.BaseURL == "" {
		c.Update.BaseURL = "https://releases.luguber.info/typeset"
	}
	if c.Update.Channel == "" {
		c.Update.Channel = "stable"
	}
}

// Validate checks ranges; it assumes defaults have been applied.
func (c *Config) Validate() error {
	if c.Watch.DebounceMS < 10 || c.Watch.DebounceMS > 5000 {
		return fmt.Errorf("watch.debounce_ms must be between 10 and 5000, got %d", c.Watch.DebounceMS)
	}
	if c.Export.Scale < 0.1 || c.Export.Scale > 10 {
		return fmt.Errorf("export.scale must be between 0.1 and 10, got %g", c.Export.Scale)
	}
	if c.Timestamp != nil && *c.Timestamp < 0 {
		return fmt.Errorf("timestamp must be a non-negative Unix instant, got %d", *c.Timestamp)
	}
	return nil
}

// Debounce returns the watch debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// FixedNow returns the pinned compile instant, if configured.
func (c *Config) FixedNow() *time.Time {
	if c.Timestamp == nil {
		return nil
	}
	t := time.Unix(*c.Timestamp, 0).UTC()
	return &t
}
