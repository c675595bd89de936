package forwarder

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Request is one forwarding request. Payload is the upstream request body
// and is never decoded into a schema.
type Request struct {
	Payload json.RawMessage

	// ID enables cancellation tracking. Empty disables it.
	ID string
}

// Model returns the payload's model field.
func (r Request) Model() string {
	return gjson.GetBytes(r.Payload, "model").String()
}

// MessageCount returns the number of messages in the payload.
func (r Request) MessageCount() int {
	return int(gjson.GetBytes(r.Payload, "messages.#").Int())
}

// Result is a completed buffered forward.
type Result struct {
	// Body is the raw upstream response
	Body json.RawMessage

	// Latency is the upstream round-trip time
	Latency time.Duration
}
