package forwarder

import (
	"context"
	"encoding/json"

	"mercator-hq/relay/pkg/upstream"
)

// Upstream is the upstream API as seen by the forwarder.
type Upstream interface {
	// Complete performs a buffered completion.
	Complete(ctx context.Context, payload []byte) (json.RawMessage, error)

	// Stream opens a streaming completion.
	Stream(ctx context.Context, payload []byte) (UnitReader, error)
}

// UnitReader yields the units of one upstream stream. Next returns io.EOF
// when the stream ends successfully.
type UnitReader interface {
	Next(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// ClientUpstream adapts an upstream.Client.
func ClientUpstream(c *upstream.Client) Upstream {
	return clientUpstream{c}
}

type clientUpstream struct {
	client *upstream.Client
}

func (u clientUpstream) Complete(ctx context.Context, payload []byte) (json.RawMessage, error) {
	return u.client.Complete(ctx, payload)
}

func (u clientUpstream) Stream(ctx context.Context, payload []byte) (UnitReader, error) {
	r, err := u.client.Stream(ctx, payload)
	if err != nil {
		// Avoid a non-nil interface holding a nil pointer.
		return nil, err
	}
	return r, nil
}
