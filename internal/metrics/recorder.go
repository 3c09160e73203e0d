package metrics

import "time"

// Recorder defines observability hooks for compile cycles and export work.
// Implementations may forward to Prometheus, OpenTelemetry, etc. The
// NoopRecorder is used when metrics are not configured, so injection sites
// never need nil checks.
type Recorder interface {
	ObserveCompileDuration(d time.Duration, outcome string)
	IncCompileOutcome(outcome string) // outcome: succeeded|failed
	ObserveExportDuration(format string, d time.Duration)
	IncExportPage(format, result string) // result: written|skipped|failed
	IncWatchEvent(relevant bool)
	SetExportConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(time.Duration, string) {}
func (NoopRecorder) IncCompileOutcome(string)                     {}
func (NoopRecorder) ObserveExportDuration(string, time.Duration)  {}
func (NoopRecorder) IncExportPage(string, string)                 {}
func (NoopRecorder) IncWatchEvent(bool)                           {}
func (NoopRecorder) SetExportConcurrency(int)                     {}
