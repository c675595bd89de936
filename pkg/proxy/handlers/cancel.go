package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// CancelHandler serves POST /v1/requests/{id}/cancel. It signals the
// in-flight request registered under id and reports whether one was found.
// Unknown IDs are not an error: the request may already have finished.
type CancelHandler struct {
	forwarder Forwarder
	logger    *slog.Logger
}

// NewCancelHandler creates a cancel handler.
func NewCancelHandler(fwd Forwarder, logger *slog.Logger) *CancelHandler {
	return &CancelHandler{forwarder: fwd, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *CancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("missing request id", "id", types.CodeMissingField))
		return
	}

	resp := CancelResponse{ID: id, Cancelled: h.forwarder.Cancel(id)}

	if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		logging.FromContext(ctx, h.logger).ErrorContext(ctx, "failed to write response", "error", err)
	}
}
