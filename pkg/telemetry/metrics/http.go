package metrics

import (
	"strconv"
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks the inbound HTTP surface.
//
// Metrics:
//   - relay_http_requests_total: Requests by route and status code
//   - relay_http_request_duration_seconds: Handler duration by route
type HTTPMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics with the provided registry.
func NewHTTPMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of inbound HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound HTTP requests in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.duration)

	return hm
}

// RecordRequest records one handled request.
func (hm *HTTPMetrics) RecordRequest(route string, code int, duration time.Duration) {
	hm.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	hm.duration.WithLabelValues(route).Observe(duration.Seconds())
}
