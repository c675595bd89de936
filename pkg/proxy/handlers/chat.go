package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/forwarder"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/middleware"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// ChatHandler serves POST /v1/chat/completions. The body is forwarded as-is;
// requests with "stream": true are answered with Server-Sent Events.
type ChatHandler struct {
	forwarder    Forwarder
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewChatHandler creates a chat handler. maxBodyBytes <= 0 uses
// proxy.DefaultMaxBodyBytes; a nil logger means slog.Default().
func NewChatHandler(fwd Forwarder, maxBodyBytes int64, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		forwarder:    fwd,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.logger)

	payload, err := proxy.ReadPayload(r, h.maxBodyBytes)
	if err != nil {
		log.WarnContext(ctx, "rejected chat completion request", "error", err)
		h.writeError(ctx, w, err)
		return
	}

	requestID := middleware.GetRequestID(ctx)
	meta := proxy.ExtractRequestMetadata(r, requestID, payload)
	req := forwarder.Request{Payload: payload, ID: requestID}

	if meta.Stream {
		h.serveStream(ctx, w, req, meta)
		return
	}

	log.InfoContext(ctx, "processing chat completion request", meta.LogAttrs()...)

	res, err := h.forwarder.Forward(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	log.InfoContext(ctx, "chat completion successful",
		"model", meta.Model,
		"upstream_latency_ms", res.Latency.Milliseconds(),
		"total_latency_ms", time.Since(meta.Timestamp).Milliseconds(),
	)

	if err := proxy.WriteRawJSON(w, http.StatusOK, res.Body); err != nil {
		log.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// serveStream relays a streamed completion. The first outcome is read
// before any header is written, so a request that fails before producing
// output still gets a plain JSON error with the right status. After that a
// failure is reported as one SSE error line; a cancelled stream just ends.
func (h *ChatHandler) serveStream(ctx context.Context, w http.ResponseWriter, req forwarder.Request, meta *proxy.RequestMetadata) {
	log := logging.FromContext(ctx, h.logger)
	log.InfoContext(ctx, "processing streaming chat completion request", meta.LogAttrs()...)

	stream, err := h.forwarder.ForwardStream(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	defer stream.Close()

	out := stream.Next(ctx)
	if out.Kind == forwarder.OutcomeFailed || out.Kind == forwarder.OutcomeCancelled {
		h.writeError(ctx, w, out.Err)
		return
	}

	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	events := 0
	for {
		switch out.Kind {
		case forwarder.OutcomeEvent, forwarder.OutcomeDone:
			if err := proxy.WriteSSEEvent(w, out.Event); err != nil {
				log.WarnContext(ctx, "client went away during streaming",
					"events_sent", events,
					"error", err,
				)
				return
			}
			events++

		case forwarder.OutcomeFailed:
			if err := proxy.WriteSSEError(w, proxy.HandleError(out.Err)); err != nil {
				log.ErrorContext(ctx, "failed to write SSE error", "error", err)
			}

		case forwarder.OutcomeCancelled:
			log.InfoContext(ctx, "stream cancelled", "events_sent", events)
		}

		if out.Terminal() {
			break
		}
		out = stream.Next(ctx)
	}

	if out.Kind == forwarder.OutcomeDone {
		log.InfoContext(ctx, "streaming chat completion successful",
			"model", meta.Model,
			"events_sent", events,
			"attempts", stream.Attempt()+1,
			"total_latency_ms", time.Since(meta.Timestamp).Milliseconds(),
		)
	}
}

func (h *ChatHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if err := proxy.WriteErrorResponse(w, proxy.HandleError(err)); err != nil {
		logging.FromContext(ctx, h.logger).ErrorContext(ctx, "failed to write error response", "error", err)
	}
}
