// Package middleware provides the HTTP middleware used by the relay server.
//
// # Chain
//
// The server applies middleware outermost first:
//
//	RecoveryMiddleware      // 500 on panic, stack trace logged
//	tracing.HTTPMiddleware  // extract traceparent, expose X-Trace-ID
//	RequestIDMiddleware     // X-Request-ID in, context, X-Request-ID out
//	LoggingMiddleware       // "request completed" with status and latency
//
// API routes additionally get ClientKeyMiddleware, and every route is
// wrapped in MetricsMiddleware labelled with its mux pattern.
//
// # Request IDs
//
// A client-supplied X-Request-ID is kept (up to 128 bytes); otherwise a
// UUID is generated. The ID doubles as the forwarder's cancellation key, so
// a client that picks its own ID can later cancel the request with
//
//	POST /v1/requests/{id}/cancel
//
// # Client Key
//
// When auth.client_api_key is configured, requests must carry the same key
// in X-API-Key or as a bearer token. Keys are compared in constant time.
// Rejected requests get a 401 in OpenAI error format:
//
//	{
//	  "error": {
//	    "message": "Invalid API key. ...",
//	    "type": "authentication_error",
//	    "code": "invalid_api_key"
//	  }
//	}
//
// # Streaming
//
// The status-capturing writer used by logging and metrics forwards Flush,
// so SSE events are delivered as soon as the handler writes them.
package middleware
