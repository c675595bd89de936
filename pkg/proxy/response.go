package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/relay/pkg/forwarder"
	"mercator-hq/relay/pkg/proxy/types"
)

// WriteJSONResponse writes a JSON response to the HTTP response writer.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	return nil
}

// WriteRawJSON writes an already-encoded JSON body unchanged.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body json.RawMessage) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}

// WriteErrorResponse writes an OpenAI-compatible error response with the
// response's status code.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	if errResp.RetryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(errResp.RetryAfter))
	}
	return WriteJSONResponse(w, errResp.StatusCode(), errResp)
}

// WriteSSEEvent writes one framed event followed by a blank line and
// flushes it to the client.
func WriteSSEEvent(w http.ResponseWriter, event forwarder.Event) error {
	if _, err := w.Write(event.Wire()); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// WriteSSEError writes an error in SSE format. It is used when a stream
// fails after the response headers were sent.
func WriteSSEError(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	data, err := json.Marshal(map[string]interface{}{
		"error": errResp.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// SetSSEHeaders sets the appropriate headers for Server-Sent Events streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// retryAfterSeconds renders d as whole seconds, rounded up.
func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}
