// Package server provides the relay's inbound HTTP server.
//
// The server ties the forwarder to HTTP: it registers the routes, chains the
// middleware and manages the listener lifecycle.
//
// # Basic Usage
//
//	srv := server.New(cfg, server.Options{
//	    Forwarder: fwd,
//	    Metrics:   collector,
//	    Health:    checker,
//	    Logger:    logger,
//	    Version:   version,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled or the listener fails.
//
// # Graceful Shutdown
//
// When ctx is cancelled the server stops accepting connections and waits up
// to server.shutdown_timeout for in-flight requests, including open SSE
// streams, before closing the remaining connections.
//
// # Routes
//
//   - POST /v1/chat/completions: buffered JSON or SSE, depending on "stream"
//   - POST /v1/requests/{id}/cancel: cancel an in-flight request
//   - GET /health: liveness, with the in-flight request count
//   - GET /ready: readiness checks
//   - GET /version: build information
//   - GET /metrics: Prometheus metrics, when telemetry.metrics.enabled
//
// The two /v1 routes require the client API key when auth.client_api_key is
// set.
//
// # Middleware Chain
//
// Outermost first:
//  1. Recovery: turns panics into a 500 JSON error
//  2. Tracing: extracts inbound trace context
//  3. RequestID: accepts or generates X-Request-ID
//  4. Logging: one line per completed request
//
// Each route is additionally wrapped with HTTP metrics labelled by its
// pattern.
//
// No write timeout is set on the http.Server, since it would cut off long
// streams. Upstream reads are bounded by the upstream client instead.
package server
