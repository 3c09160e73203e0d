package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindInput, "entry not found")
	assert.Equal(t, KindInput, KindOf(err))

	wrapped := fmt.Errorf("opening input: %w", err)
	assert.Equal(t, KindInput, KindOf(wrapped), "kind should survive wrapping")

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")), "unclassified errors are internal")
}

func TestUnwrap(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(cause, KindInput, "main.tsd")
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "main.tsd")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"diagnostics", New(KindDiagnostic, "2 errors"), ExitDiagnostics},
		{"input", New(KindInput, "no such file"), ExitIO},
		{"config", New(KindConfig, "bad yaml"), ExitIO},
		{"pattern", New(KindExportPattern, "missing {page}"), ExitIO},
		{"partial", New(KindExportPartial, "page 3 failed"), ExitIO},
		{"watch", New(KindWatchIO, "inotify exhausted"), ExitWatch},
		{"internal", New(KindInternal, "engine panic"), ExitInternal},
		{"plain", errors.New("unknown"), ExitInternal},
		{"wrapped diagnostics", fmt.Errorf("run: %w", New(KindDiagnostic, "x")), ExitDiagnostics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
