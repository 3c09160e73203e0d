// Package metrics provides the observability hooks for compile cycles, export
// work, and watch events.
//
// The Recorder interface decouples instrumented code from the backend. The
// default is NoopRecorder; watch mode with --metrics-addr wires a
// PrometheusRecorder and serves the registry over HTTP.
//
// Exposed series (namespace "typeset"):
//   - compile_duration_seconds{outcome}
//   - compile_outcomes_total{outcome}
//   - export_duration_seconds{format}
//   - export_pages_total{format,result}
//   - watch_events_total{relevant}
//   - export_concurrency
package metrics
