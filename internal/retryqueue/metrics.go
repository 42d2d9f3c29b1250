package retryqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// QueueMetricsRecorder abstracts metrics recording for the retry queue so
// tests can inject a no-op and the metrics backend stays swappable.
type QueueMetricsRecorder interface {
	// SetQueueDepth records the current number of items in the queue.
	SetQueueDepth(n int)

	// RecordEnqueued increments the enqueue counter for a failure reason.
	RecordEnqueued(reason string)

	// RecordOutcome increments the retry outcome counter ("success" or
	// "failure").
	RecordOutcome(outcome string)
}

// NoopQueueMetrics discards all metrics. Used in tests and the CLI.
type NoopQueueMetrics struct{}

func (NoopQueueMetrics) SetQueueDepth(int)     {}
func (NoopQueueMetrics) RecordEnqueued(string) {}
func (NoopQueueMetrics) RecordOutcome(string)  {}

// PrometheusQueueMetrics records retry queue metrics to Prometheus.
type PrometheusQueueMetrics struct {
	depth    prometheus.Gauge
	enqueued *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewPrometheusQueueMetrics creates and registers the retry queue metrics on
// the default registry. Registration is idempotent so multiple components
// can share the same collectors.
func NewPrometheusQueueMetrics() *PrometheusQueueMetrics {
	return &PrometheusQueueMetrics{
		depth: getOrCreateGauge(prometheus.GaugeOpts{
			Name: "retry_queue_depth",
			Help: "Current number of items in the retry queue.",
		}),
		enqueued: getOrCreateCounterVec(prometheus.CounterOpts{
			Name: "retry_queue_enqueued_total",
			Help: "Total items added to the retry queue by failure reason.",
		}, []string{"reason"}),
		outcomes: getOrCreateCounterVec(prometheus.CounterOpts{
			Name: "retry_queue_outcomes_total",
			Help: "Total retry outcomes by result.",
		}, []string{"outcome"}),
	}
}

// SetQueueDepth implements QueueMetricsRecorder.
func (p *PrometheusQueueMetrics) SetQueueDepth(n int) {
	p.depth.Set(float64(n))
}

// RecordEnqueued implements QueueMetricsRecorder.
func (p *PrometheusQueueMetrics) RecordEnqueued(reason string) {
	p.enqueued.WithLabelValues(reason).Inc()
}

// RecordOutcome implements QueueMetricsRecorder.
func (p *PrometheusQueueMetrics) RecordOutcome(outcome string) {
	p.outcomes.WithLabelValues(outcome).Inc()
}

func getOrCreateGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		return promauto.NewGauge(opts)
	}
	return g
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
