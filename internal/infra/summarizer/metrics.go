package summarizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder abstracts metrics recording for provider calls so tests
// can inject a mock and the metrics backend stays swappable.
type MetricsRecorder interface {
	// RecordCall records one provider call with its outcome ("success" or
	// "error") and duration.
	RecordCall(provider, outcome string, duration time.Duration)

	// RecordSummaryLength records the rune length of a generated summary.
	RecordSummaryLength(provider string, length int)
}

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

func (NoopMetrics) RecordCall(string, string, time.Duration) {}
func (NoopMetrics) RecordSummaryLength(string, int)          {}

// PrometheusMetrics records provider call metrics to Prometheus.
type PrometheusMetrics struct {
	calls     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	lengths   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the summarizer metrics on the
// default registry. Registration is idempotent so every provider adapter
// can share the same collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		calls: getOrCreateCounterVec(prometheus.CounterOpts{
			Name: "summarizer_calls_total",
			Help: "Total provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		durations: getOrCreateHistogramVec(prometheus.HistogramOpts{
			Name:    "summarizer_call_duration_seconds",
			Help:    "Duration of provider calls.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		lengths: getOrCreateHistogramVec(prometheus.HistogramOpts{
			Name:    "summarizer_summary_length_chars",
			Help:    "Rune length of generated summaries.",
			Buckets: []float64{100, 250, 500, 750, 900, 1200, 2000, 5000},
		}, []string{"provider"}),
	}
}

// RecordCall implements MetricsRecorder.
func (p *PrometheusMetrics) RecordCall(provider, outcome string, duration time.Duration) {
	p.calls.WithLabelValues(provider, outcome).Inc()
	p.durations.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSummaryLength implements MetricsRecorder.
func (p *PrometheusMetrics) RecordSummaryLength(provider string, length int) {
	p.lengths.WithLabelValues(provider).Observe(float64(length))
}

func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		return promauto.NewCounterVec(opts, labels)
	}
	return c
}

func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		return promauto.NewHistogramVec(opts, labels)
	}
	return h
}
