// Package tracing provides OpenTelemetry distributed tracing for the relay.
//
// # Overview
//
// Spans are exported over OTLP gRPC. When tracing is disabled New returns a
// noop tracer, so callers never need to check whether tracing is on.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// All samplers respect the parent's decision when an inbound request already
// carries a sampled traceparent.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	fwd := forwarder.New(up, forwarder.Options{Tracer: tracer})
//
// # Span Hierarchy
//
//	forwarder.stream
//	├── forwarder.attempt (relay.attempt=0, relay.error.category=upstream_connection)
//	└── forwarder.attempt (relay.attempt=1)
//
// Non-streaming requests produce a single forwarder.forward span.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
