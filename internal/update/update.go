// Package update implements self-update: fetch the release artifact for the
// current platform, verify its integrity, and replace the running executable
// atomically, rolling back on any failure. The executable path is never left
// missing or half-written.
package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/typeset/internal/apperr"
)

// Options configure an update run. Zero values get sensible defaults.
type Options struct {
	BaseURL string
	Channel string
	// ExecPath is the binary to replace; defaults to os.Executable().
	ExecPath string
	Client   *http.Client
	// Probe checks that a staged binary is runnable before it replaces the
	// current one; defaults to executing it with --version.
	Probe func(path string) error
	// Strategy performs the actual replacement; defaults to RenameStrategy.
	Strategy Strategy
	// Attempts bounds download retries; defaults to 3.
	Attempts int
}

// Run performs one self-update. It is safe to interrupt: the target binary
// is only ever replaced by a single rename.
func Run(ctx context.Context, opts Options) error {
	if opts.Channel == "" {
		opts.Channel = "stable"
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.Probe == nil {
		opts.Probe = probeVersion
	}
	if opts.Strategy == nil {
		opts.Strategy = RenameStrategy{}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.ExecPath == "" {
		path, err := os.Executable()
		if err != nil {
			return apperr.Wrap(err, apperr.KindUpdate, "locate running executable")
		}
		opts.ExecPath = path
	}

	artifact := fmt.Sprintf("typeset_%s_%s_%s.gz", opts.Channel, runtime.GOOS, runtime.GOARCH)
	artifactURL := strings.TrimSuffix(opts.BaseURL, "/") + "/" + artifact

	slog.Info("fetching release artifact", "url", artifactURL)
	compressed, err := fetch(ctx, opts.Client, artifactURL, opts.Attempts)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "download artifact")
	}
	digest, err := fetch(ctx, opts.Client, artifactURL+".sha256", opts.Attempts)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "download checksum")
	}

	binary, err := decompress(compressed)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "decompress artifact")
	}
	if err := verify(binary, digest); err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "verify artifact")
	}

	staged, err := stage(opts.ExecPath, binary)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "stage new binary")
	}
	defer func() {
		if staged != "" {
			_ = os.Remove(staged)
		}
	}()

	if err := opts.Probe(staged); err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "new binary failed probe")
	}

	if err := opts.Strategy.Replace(opts.ExecPath, staged); err != nil {
		return apperr.Wrap(err, apperr.KindUpdate, "replace executable")
	}
	staged = "" // consumed by the strategy
	slog.Info("update complete", "path", opts.ExecPath)
	return nil
}

func fetch(ctx context.Context, client *http.Client, url string, attempts int) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoff(attempt - 1)
			slog.Debug("retrying download", "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		data, err := fetchOnce(ctx, client, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func fetchOnce(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// backoff returns the linear retry delay (1s, 2s, ...) capped at 10s.
func backoff(retry int) time.Duration {
	d := time.Duration(retry) * time.Second
	if d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// verify compares the decompressed binary against the published sha256 hex
// digest (first field of the checksum file).
func verify(binary, checksumFile []byte) error {
	fields := strings.Fields(string(checksumFile))
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum file")
	}
	want := strings.ToLower(fields[0])
	sum := sha256.Sum256(binary)
	got := hex.EncodeToString(sum[:])
	if got != want {
		return fmt.Errorf("sha256 mismatch: got %s, want %s", got, want)
	}
	return nil
}

// stage writes the new binary to a sibling temp path with the executable bit
// set, so the final replacement is a single same-filesystem rename.
func stage(target string, binary []byte) (string, error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".typeset-update-*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if _, err := tmp.Write(binary); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0o755); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func probeVersion(path string) error {
	cmd := exec.Command(path, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
