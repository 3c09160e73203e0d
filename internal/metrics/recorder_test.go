package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveCompileDuration(time.Second, "succeeded")
	r.IncCompileOutcome("failed")
	r.ObserveExportDuration("png", 10*time.Millisecond)
	r.IncExportPage("png", "written")
	r.IncWatchEvent(true)
	r.SetExportConcurrency(4)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveCompileDuration(150*time.Millisecond, "succeeded")
	pr.IncCompileOutcome("succeeded")
	pr.ObserveExportDuration("pdf", 40*time.Millisecond)
	pr.IncExportPage("pdf", "written")
	pr.IncWatchEvent(false)
	pr.SetExportConcurrency(8)
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}
