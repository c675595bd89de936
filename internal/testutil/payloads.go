package testutil

import (
	"encoding/json"
	"net/http"
	"time"
)

// ChatPayload returns a minimal chat-completion request body.
func ChatPayload(model string, stream bool) []byte {
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": "Hello"},
		},
		"stream": stream,
	}
	b, _ := json.Marshal(payload)
	return b
}

// CompletionBody creates an OpenAI chat completion response.
func CompletionBody(content, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// StreamChunk creates an OpenAI streaming chunk carrying delta.
func StreamChunk(delta string) string {
	chunk := map[string]interface{}{
		"id":     "chatcmpl-123",
		"object": "chat.completion.chunk",
		"model":  "gpt-4",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"delta": map[string]interface{}{
					"content": delta,
				},
			},
		},
	}
	b, _ := json.Marshal(chunk)
	return string(b)
}

// StreamChunks creates one chunk per delta.
func StreamChunks(deltas ...string) []string {
	chunks := make([]string, len(deltas))
	for i, d := range deltas {
		chunks[i] = StreamChunk(d)
	}
	return chunks
}

// ErrorResponse creates an OpenAI-style error response.
func ErrorResponse(statusCode int, errType, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
				"type":    errType,
			},
		},
	}
}

// AuthError creates a 401 response.
func AuthError() MockResponse {
	return ErrorResponse(http.StatusUnauthorized, "invalid_request_error", "Incorrect API key provided")
}

// RateLimitError creates a 429 rate limit response.
func RateLimitError() MockResponse {
	resp := ErrorResponse(http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit reached for requests")
	resp.Headers = map[string]string{"Retry-After": "7"}
	return resp
}

// ServerError creates a 500 response.
func ServerError() MockResponse {
	return ErrorResponse(http.StatusInternalServerError, "server_error", "The server had an error while processing your request")
}
