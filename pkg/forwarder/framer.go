package forwarder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const eventPrefix = "data: "

// Event is one outbound SSE line without its trailing blank line.
type Event string

// Done terminates a successful stream.
const Done Event = eventPrefix + "[DONE]"

// Frame renders one upstream unit as an event carrying its compact JSON.
func Frame(unit json.RawMessage) (Event, error) {
	var buf bytes.Buffer
	buf.Grow(len(eventPrefix) + len(unit))
	buf.WriteString(eventPrefix)
	if err := json.Compact(&buf, unit); err != nil {
		return "", fmt.Errorf("failed to frame stream unit: %w", err)
	}
	return Event(buf.String()), nil
}

// Data returns the event's payload after the "data: " prefix.
func (e Event) Data() string {
	return strings.TrimPrefix(string(e), eventPrefix)
}

// Wire returns the event as written to an SSE response.
func (e Event) Wire() []byte {
	return []byte(string(e) + "\n\n")
}
