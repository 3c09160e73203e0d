package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Root)
	assert.True(t, *cfg.EmbeddedFonts)
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 1.0, cfg.Export.Scale)
	assert.Equal(t, "stable", cfg.Update.Channel)
	assert.Nil(t, cfg.FixedNow())
}

func TestLoadExplicitFileMissingIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typeset.yaml")
	content := `
root: docs
font_paths:
  - /usr/share/fonts
timestamp: 1709294400
watch:
  debounce_ms: 300
export:
  scale: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.Root)
	assert.Equal(t, []string{"/usr/share/fonts"}, cfg.FontPaths)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 2.0, cfg.Export.Scale)

	fixed := cfg.FixedNow()
	require.NotNil(t, fixed)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), *fixed)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typeset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooot: here\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typeset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: from-file\n"), 0o644))
	t.Setenv("TYPESET_ROOT", "from-env")
	t.Setenv("TYPESET_METRICS_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Root)
	assert.Equal(t, ":9090", cfg.Watch.MetricsAddr)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"debounce too small", func(c *Config) { c.Watch.DebounceMS = 5 }},
		{"debounce too large", func(c *Config) { c.Watch.DebounceMS = 60000 }},
		{"scale too small", func(c *Config) { c.Export.Scale = 0.01 }},
		{"negative timestamp", func(c *Config) { ts := int64(-5); c.Timestamp = &ts }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
