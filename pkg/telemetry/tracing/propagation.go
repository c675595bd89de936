package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Trace context crosses the relay twice: inbound requests carry a W3C
// traceparent that HTTPMiddleware extracts, and outbound upstream requests get
// the active context injected so the upstream's spans join the same trace.
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01

// Propagator returns the configured text map propagator.
// This is typically a composite propagator that handles both
// W3C Trace Context and W3C Baggage.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract extracts trace context from HTTP headers and returns a context
// with the extracted trace context.
//
// If no trace context is found in the headers, the original context is returned.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject injects trace context into HTTP headers.
//
// The trace context from ctx is serialized into traceparent and tracestate headers.
func Inject(ctx context.Context, headers http.Header) {
	Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware returns an HTTP middleware that automatically extracts
// trace context from incoming requests and injects it into outgoing responses.
//
// Usage:
//
//	mux.Handle("/", tracing.HTTPMiddleware(handler))
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract trace context from request headers
		ctx := Extract(r.Context(), r.Header)

		// Echo the trace ID so callers can correlate a response with its trace.
		if span := SpanFromContext(ctx); span.SpanContext().IsValid() {
			w.Header().Set("X-Trace-ID", span.SpanContext().TraceID().String())
			w.Header().Set("X-Span-ID", span.SpanContext().SpanID().String())
		}

		// Call next handler with updated context
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
