package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/relay/pkg/proxy/types"

	"github.com/tidwall/gjson"
)

const (
	// DefaultMaxBodyBytes is the request body limit used when none is configured.
	DefaultMaxBodyBytes = 10 * 1024 * 1024

	// AuthorizationHeader carries "Bearer <key>".
	AuthorizationHeader = "Authorization"

	// APIKeyHeader carries the bare client key.
	APIKeyHeader = "X-API-Key"

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ReadPayload reads and checks a chat-completion request body. The body is
// returned as-is: it must be a JSON object with a non-empty "model" string
// and a "messages" array, and no larger than maxBytes. A non-positive
// maxBytes means DefaultMaxBodyBytes.
func ReadPayload(r *http.Request, maxBytes int64) (json.RawMessage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if int64(len(body)) > maxBytes {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
			Status:  http.StatusRequestEntityTooLarge,
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, &RequestError{
			Message: "invalid JSON in request body",
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, &RequestError{
			Message: "request body must be a JSON object",
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	if model := root.Get("model"); model.Type != gjson.String || model.String() == "" {
		return nil, &RequestError{
			Message: "missing required field 'model'",
			Code:    types.CodeMissingField,
			Param:   "model",
		}
	}

	if messages := root.Get("messages"); !messages.IsArray() {
		return nil, &RequestError{
			Message: "'messages' must be an array",
			Code:    types.CodeInvalidValue,
			Param:   "messages",
		}
	}

	return body, nil
}

// IsStream reports whether the payload asks for a streamed response.
func IsStream(payload []byte) bool {
	return gjson.GetBytes(payload, "stream").Bool()
}

// ExtractAPIKey returns the client key from the X-API-Key header, or from an
// "Authorization: Bearer <key>" header. It returns "" when neither is set.
func ExtractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}

	authHeader := r.Header.Get(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <api-key>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// ExtractRequestID extracts the request ID from the X-Request-ID header.
// If the header is not present, it returns an empty string.
func ExtractRequestID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(RequestIDHeader))
}

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string

	// Status defaults to 400.
	Status int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	if e.Status != 0 && e.Status != http.StatusBadRequest {
		resp := types.NewErrorResponse(e.Message, types.TypeForStatus(e.Status), e.Param, e.Code)
		resp.Status = e.Status
		return resp
	}
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
