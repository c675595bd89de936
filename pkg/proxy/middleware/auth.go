package middleware

import (
	"crypto/subtle"
	"net/http"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
)

// ClientKeyMiddleware rejects requests whose client key does not match
// expected. The key is read from X-API-Key or "Authorization: Bearer".
// An empty expected key lets every request through.
//
// Example usage:
//
//	handler = ClientKeyMiddleware(cfg.Auth.ClientAPIKey)(handler)
func ClientKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidClientKey(proxy.ExtractAPIKey(r), expected) {
				_ = proxy.WriteErrorResponse(w, types.NewAuthenticationError(
					"Invalid API key. Provide the relay's client key in the x-api-key or Authorization header.",
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidClientKey compares a client key in constant time. An empty expected
// key accepts anything.
func ValidClientKey(got, expected string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
