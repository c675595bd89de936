// Package telemetry groups the relay's observability packages.
//
// # Components
//
//   - logging: slog handlers with a rotating log file, console output,
//     credential redaction and a level that can change at runtime
//   - metrics: Prometheus counters and histograms for the forwarder and the
//     HTTP surface
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(&cfg.Telemetry.Logging, os.Stderr)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//
//	fwd := forwarder.New(up, forwarder.Options{
//	    Logger:  logger.Slog(),
//	    Metrics: collector,
//	    Tracer:  tracer,
//	})
//
// # Credential Redaction
//
// With telemetry.logging.redact set, credentials are masked before any
// sink sees them:
//
//   - API keys: sk-abc123def456 → sk-***
//   - Bearer tokens: Bearer abc.def → Bearer ***
//   - Attributes named api_key, authorization, token, ...: prefix only
package telemetry
