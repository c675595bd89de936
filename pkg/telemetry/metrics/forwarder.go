package metrics

import (
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ForwarderMetrics tracks the forwarding core.
//
// Metrics:
//   - relay_forwarder_requests_total: Finished requests by mode and outcome
//   - relay_forwarder_retries_total: Stream retries by error category
//   - relay_forwarder_errors_total: Classified failures by category
//   - relay_forwarder_in_flight: Requests currently registered for cancellation
//   - relay_forwarder_stream_events_total: Events delivered to streaming consumers
//   - relay_forwarder_upstream_latency_seconds: Request latency by mode
type ForwarderMetrics struct {
	requestsTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	inFlight      prometheus.Gauge
	streamEvents  prometheus.Counter
	latency       *prometheus.HistogramVec
}

// NewForwarderMetrics creates and registers forwarder metrics with the provided registry.
func NewForwarderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ForwarderMetrics {
	fm := &ForwarderMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of forwarded requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries_total",
				Help:      "Total number of streaming retries by the error category that caused them",
			},
			[]string{"category"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of failed requests by error category",
			},
			[]string{"category"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "in_flight",
				Help:      "Number of requests currently registered for cancellation",
			},
		),

		streamEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_events_total",
				Help:      "Total number of stream events delivered to consumers",
			},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Time from request start to its terminal outcome in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		fm.requestsTotal,
		fm.retriesTotal,
		fm.errorsTotal,
		fm.inFlight,
		fm.streamEvents,
		fm.latency,
	)

	return fm
}

// RecordRequest records a finished request and its latency.
func (fm *ForwarderMetrics) RecordRequest(mode, outcome string, latency time.Duration) {
	fm.requestsTotal.WithLabelValues(mode, outcome).Inc()
	fm.latency.WithLabelValues(mode).Observe(latency.Seconds())
}

// RecordRetry records one retry caused by category.
func (fm *ForwarderMetrics) RecordRetry(category string) {
	fm.retriesTotal.WithLabelValues(category).Inc()
}

// RecordError records a classified failure.
func (fm *ForwarderMetrics) RecordError(category string) {
	fm.errorsTotal.WithLabelValues(category).Inc()
}

// RecordStreamEvent records one delivered stream event.
func (fm *ForwarderMetrics) RecordStreamEvent() {
	fm.streamEvents.Inc()
}

// SetInFlight sets the in-flight gauge.
func (fm *ForwarderMetrics) SetInFlight(n int) {
	fm.inFlight.Set(float64(n))
}
