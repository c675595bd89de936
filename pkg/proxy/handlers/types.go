package handlers

import (
	"context"

	"mercator-hq/relay/pkg/forwarder"
)

// Forwarder is the part of *forwarder.Forwarder the handlers use.
type Forwarder interface {
	Forward(ctx context.Context, req forwarder.Request) (*forwarder.Result, error)
	ForwardStream(ctx context.Context, req forwarder.Request) (*forwarder.Stream, error)
	Cancel(id string) bool
}

// CancelResponse is the body returned by the cancel endpoint.
type CancelResponse struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
}
