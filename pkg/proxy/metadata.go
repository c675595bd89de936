package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/telemetry/logging"

	"github.com/tidwall/gjson"
)

// RequestMetadata describes an inbound chat-completion request for logging.
// It is read from the raw payload without decoding it.
type RequestMetadata struct {
	// RequestID is the request's tracking ID.
	RequestID string

	// Model is the requested model name.
	Model string

	// Messages is the length of the message list.
	Messages int

	// Stream indicates whether streaming is requested.
	Stream bool

	// APIKey is the client key, redacted.
	APIKey string

	Method     string
	Path       string
	UserAgent  string
	RemoteAddr string

	// Timestamp is when the request was received.
	Timestamp time.Time
}

// ExtractRequestMetadata extracts metadata from an HTTP request and its
// already-read payload.
func ExtractRequestMetadata(r *http.Request, requestID string, payload []byte) *RequestMetadata {
	fields := gjson.GetManyBytes(payload, "model", "messages.#", "stream")

	return &RequestMetadata{
		RequestID:  requestID,
		Model:      fields[0].String(),
		Messages:   int(fields[1].Int()),
		Stream:     fields[2].Bool(),
		APIKey:     logging.RedactAPIKey(ExtractAPIKey(r)),
		Method:     r.Method,
		Path:       r.URL.Path,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Timestamp:  time.Now(),
	}
}

// LogAttrs returns the metadata as slog attributes.
func (m *RequestMetadata) LogAttrs() []any {
	return []any{
		slog.String("model", m.Model),
		slog.Int("messages", m.Messages),
		slog.Bool("stream", m.Stream),
		slog.String("remote_addr", m.RemoteAddr),
		slog.String("user_agent", m.UserAgent),
	}
}
