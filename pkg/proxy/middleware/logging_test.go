package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetStartTime(r.Context()).IsZero() {
			t.Error("start time missing from context")
		}
		w.WriteHeader(http.StatusTeapot)
	})

	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(handler))
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set(RequestIDHeader, "req-log")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "request completed" || entry["level"] != "WARN" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["request_id"] != "req-log" {
		t.Errorf("entry = %v", entry)
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	var w http.ResponseWriter = rw
	flusher, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("responseWriter does not implement http.Flusher")
	}

	_, _ = w.Write([]byte("data: x\n\n"))
	flusher.Flush()

	if !rec.Flushed {
		t.Error("Flush was not forwarded")
	}
	if newResponseWriter(rw) != rw {
		t.Error("wrapping twice should reuse the writer")
	}
}

type fakeRecorder struct {
	route    string
	code     int
	duration time.Duration
}

func (f *fakeRecorder) RecordHTTPRequest(route string, code int, d time.Duration) {
	f.route, f.code, f.duration = route, code, d
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	MetricsMiddleware(rec, "POST /v1/chat/completions")(handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{}")))

	if rec.route != "POST /v1/chat/completions" || rec.code != http.StatusBadGateway {
		t.Errorf("recorded %+v", rec)
	}

	passthrough := MetricsMiddleware(nil, "x")(handler)
	if passthrough == nil {
		t.Error("nil recorder should return the handler")
	}
}
