package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/relay/pkg/forwarder"
)

func TestWriteErrorResponse_RetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		want       string
	}{
		{"none", 0, ""},
		{"whole seconds", 7 * time.Second, "7"},
		{"rounds up", 1500 * time.Millisecond, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := forwarder.Classification{
				Category:   forwarder.CategoryRateLimited,
				Status:     http.StatusTooManyRequests,
				Message:    forwarder.MsgRateLimit,
				RetryAfter: tt.retryAfter,
			}
			w := httptest.NewRecorder()
			if err := WriteErrorResponse(w, ClassificationResponse(c)); err != nil {
				t.Fatalf("WriteErrorResponse() error = %v", err)
			}

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want 429", w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}
