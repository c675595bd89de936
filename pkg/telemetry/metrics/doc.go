// Package metrics provides Prometheus metrics for the relay.
//
// # Metrics
//
//   - relay_forwarder_requests_total{mode,outcome}
//   - relay_forwarder_retries_total{category}
//   - relay_forwarder_errors_total{category}
//   - relay_forwarder_in_flight
//   - relay_forwarder_stream_events_total
//   - relay_forwarder_upstream_latency_seconds{mode}
//   - relay_http_requests_total{route,code}
//   - relay_http_request_duration_seconds{route}
//
// Go runtime and process metrics are registered alongside.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	fwd := forwarder.New(up, forwarder.Options{Metrics: collector})
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Labels are bounded: mode, outcome, and category come from fixed sets and
// route is the registered mux pattern, never the raw URL.
package metrics
