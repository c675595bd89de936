package middleware

import (
	"net/http"
	"time"
)

// HTTPRecorder records completed HTTP requests.
type HTTPRecorder interface {
	RecordHTTPRequest(route string, code int, duration time.Duration)
}

// MetricsMiddleware records the status and latency of every request under
// a fixed route label. Use the mux pattern as the route so the label's
// cardinality stays bounded.
//
// Example usage:
//
//	mux.Handle(pattern, MetricsMiddleware(collector, pattern)(handler))
func MetricsMiddleware(recorder HTTPRecorder, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			recorder.RecordHTTPRequest(route, rw.statusCode, time.Since(start))
		})
	}
}
