package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	compileDuration   *prom.HistogramVec
	compileOutcomes   *prom.CounterVec
	exportDuration    *prom.HistogramVec
	exportPages       *prom.CounterVec
	watchEvents       *prom.CounterVec
	exportConcurrency prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.compileDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "typeset",
			Name:      "compile_duration_seconds",
			Help:      "Duration of compile cycles",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.compileOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "typeset",
			Name:      "compile_outcomes_total",
			Help:      "Compile cycle outcomes",
		}, []string{"outcome"})
		pr.exportDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "typeset",
			Name:      "export_duration_seconds",
			Help:      "Duration of export runs per format",
			Buckets:   prom.DefBuckets,
		}, []string{"format"})
		pr.exportPages = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "typeset",
			Name:      "export_pages_total",
			Help:      "Exported page results by format",
		}, []string{"format", "result"})
		pr.watchEvents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "typeset",
			Name:      "watch_events_total",
			Help:      "File-system events seen by the watcher",
		}, []string{"relevant"})
		pr.exportConcurrency = prom.NewGauge(prom.GaugeOpts{
			Namespace: "typeset",
			Name:      "export_concurrency",
			Help:      "Worker pool size used for the last export run",
		})
		reg.MustRegister(pr.compileDuration, pr.compileOutcomes, pr.exportDuration,
			pr.exportPages, pr.watchEvents, pr.exportConcurrency)
	})
	return pr
}

func (pr *PrometheusRecorder) ObserveCompileDuration(d time.Duration, outcome string) {
	pr.compileDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncCompileOutcome(outcome string) {
	pr.compileOutcomes.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) ObserveExportDuration(format string, d time.Duration) {
	pr.exportDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncExportPage(format, result string) {
	pr.exportPages.WithLabelValues(format, result).Inc()
}

func (pr *PrometheusRecorder) IncWatchEvent(relevant bool) {
	label := "false"
	if relevant {
		label = "true"
	}
	pr.watchEvents.WithLabelValues(label).Inc()
}

func (pr *PrometheusRecorder) SetExportConcurrency(n int) {
	pr.exportConcurrency.Set(float64(n))
}
