package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// Internal Server Error response in OpenAI error format. The panic is logged
// with its stack trace. http.ErrAbortHandler is re-raised so the server can
// abort the connection as usual.
//
// Example usage:
//
//	handler = RecoveryMiddleware(logger)(handler)
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logging.FromContext(r.Context(), logger).ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				errResp := types.NewServerError("An internal error occurred. Please try again later.")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(errResp)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
