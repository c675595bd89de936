package metrics

import (
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the relay's Prometheus registry and records measurements
// from the forwarder and the HTTP surface. It implements forwarder.Recorder.
//
// When metrics are disabled every Record method is a no-op, but the
// registry still exists so Handler can be mounted unconditionally.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	forwarder *ForwarderMetrics
	http      *HTTPMetrics
}

// NewCollector creates a collector and registers all relay metrics plus the
// Go runtime and process collectors. If registry is nil a fresh registry is
// created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	fwd := forwarder.New(up, forwarder.Options{Metrics: collector})
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = append([]float64(nil), config.DefaultLatencyBuckets...)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.forwarder = NewForwarderMetrics(cfg, registry)
	c.http = NewHTTPMetrics(cfg, registry)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RequestFinished records a request that reached a terminal outcome.
func (c *Collector) RequestFinished(mode, outcome string, latency time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.forwarder.RecordRequest(mode, outcome, latency)
}

// Retry records a streaming retry.
func (c *Collector) Retry(category string) {
	if !c.config.Enabled {
		return
	}
	c.forwarder.RecordRetry(category)
}

// Failure records a classified failure.
func (c *Collector) Failure(category string) {
	if !c.config.Enabled {
		return
	}
	c.forwarder.RecordError(category)
}

// StreamEvent records one event delivered to a streaming consumer.
func (c *Collector) StreamEvent() {
	if !c.config.Enabled {
		return
	}
	c.forwarder.RecordStreamEvent()
}

// InFlight sets the number of requests registered for cancellation.
func (c *Collector) InFlight(n int) {
	if !c.config.Enabled {
		return
	}
	c.forwarder.SetInFlight(n)
}

// RecordHTTPRequest records one inbound HTTP request.
func (c *Collector) RecordHTTPRequest(route string, code int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.RecordRequest(route, code, duration)
}
