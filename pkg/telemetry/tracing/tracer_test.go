package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/relay/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testTracingConfig() *config.TracingConfig {
	return &config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		Endpoint:    "localhost:4317",
		ServiceName: "relay-test",
		Insecure:    true,
		Timeout:     time.Second,
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if _, err := New(nil, "test"); err == nil {
			t.Error("New(nil) should fail")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		tr, err := New(&config.TracingConfig{Enabled: false}, "test")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if tr.Enabled() {
			t.Error("Enabled() = true for disabled config")
		}

		_, span := tr.Start(context.Background(), "op")
		if span.IsRecording() {
			t.Error("noop tracer should not record")
		}
		span.End()

		if err := tr.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})

	t.Run("enabled otlp", func(t *testing.T) {
		tr, err := New(testTracingConfig(), "test")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if !tr.Enabled() {
			t.Error("Enabled() = false for enabled config")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tr.Shutdown(ctx); err != nil {
			t.Logf("Shutdown() without a collector: %v", err)
		}
	})

	t.Run("invalid sampler", func(t *testing.T) {
		cfg := testTracingConfig()
		cfg.Sampler = "sometimes"
		if _, err := NewWithExporter(cfg, "test", tracetest.NewInMemoryExporter()); err == nil {
			t.Error("expected sampler error")
		}
	})
}

func TestTracer_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(testTracingConfig(), "1.2.3", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	defer tr.Shutdown(context.Background())

	ctx, parent := tr.Start(context.Background(), "forwarder.stream")
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a recording span")
	}

	_, child := tr.Start(ctx, "forwarder.attempt")
	child.SetAttributes(attribute.Int(AttrAttempt, 1))
	SetError(child, errors.New("upstream read timed out"))
	SetStatus(child, errors.New("upstream read timed out"))
	child.End()

	SetStatus(parent, nil)
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	attempt, stream := spans[0], spans[1]
	if attempt.Name != "forwarder.attempt" || stream.Name != "forwarder.stream" {
		t.Fatalf("span names = %q, %q", attempt.Name, stream.Name)
	}
	if attempt.Parent.SpanID() != stream.SpanContext.SpanID() {
		t.Error("attempt span is not a child of the stream span")
	}
	if attempt.Status.Code != codes.Error {
		t.Errorf("attempt status = %v, want Error", attempt.Status.Code)
	}
	if stream.Status.Code != codes.Ok {
		t.Errorf("stream status = %v, want Ok", stream.Status.Code)
	}
	if len(attempt.Events) == 0 || attempt.Events[0].Name != "exception" {
		t.Errorf("attempt events = %v, want recorded exception", attempt.Events)
	}

	var sawAttempt bool
	for _, kv := range attempt.Attributes {
		if string(kv.Key) == AttrAttempt && kv.Value.AsInt64() == 1 {
			sawAttempt = true
		}
	}
	if !sawAttempt {
		t.Errorf("attempt attributes = %v, missing %s", attempt.Attributes, AttrAttempt)
	}

	var version string
	for _, kv := range stream.Resource.Attributes() {
		if kv.Key == "service.version" {
			version = kv.Value.AsString()
		}
	}
	if version != "1.2.3" {
		t.Errorf("service.version = %q, want 1.2.3", version)
	}
}

func TestSetError_Nil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(testTracingConfig(), "test", exporter)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Shutdown(context.Background())

	_, span := tr.Start(context.Background(), "op")
	SetError(span, nil)
	span.End()

	if got := exporter.GetSpans()[0].Events; len(got) != 0 {
		t.Errorf("SetError(nil) recorded events: %v", got)
	}
}
