package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" {
		t.Error("empty context should have no request ID")
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q", got)
	}

	ctx = WithRequestID(ctx, "req-456")
	if got := GetRequestID(ctx); got != "req-456" {
		t.Errorf("overwritten GetRequestID() = %q", got)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	FromContext(ctx, base).Info("forwarding")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}

	if FromContext(context.Background(), base) != base {
		t.Error("FromContext without fields should return the same logger")
	}
	if FromContext(context.Background(), nil) != slog.Default() {
		t.Error("FromContext(nil logger) should use slog.Default()")
	}
}
