package forwarder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/relay/pkg/telemetry/tracing"
)

// Tracer starts spans. Both trace.Tracer and *tracing.Tracer satisfy it.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Options configures a Forwarder.
type Options struct {
	// Registry tracks in-flight requests. A new one is created if nil.
	Registry *Registry

	// Policy is the streaming retry policy.
	Policy Policy

	Logger  *slog.Logger
	Metrics Recorder
	Tracer  Tracer
}

// Forwarder forwards requests to an upstream. It is safe for concurrent
// use.
type Forwarder struct {
	upstream Upstream
	registry *Registry
	policy   atomic.Pointer[Policy]
	logger   *slog.Logger
	metrics  Recorder
	tracer   Tracer

	// after is time.After, replaced in tests.
	after func(time.Duration) <-chan time.Time
}

// New creates a Forwarder over up.
func New(up Upstream, opts Options) *Forwarder {
	f := &Forwarder{
		upstream: up,
		registry: opts.Registry,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		after:    time.After,
	}
	if f.registry == nil {
		f.registry = NewRegistry()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.metrics == nil {
		f.metrics = nopRecorder{}
	}
	if f.tracer == nil {
		f.tracer = noop.NewTracerProvider().Tracer("relay")
	}
	f.SetPolicy(opts.Policy)
	f.registry.OnChange(f.metrics.InFlight)
	return f
}

// Registry returns the forwarder's cancellation registry.
func (f *Forwarder) Registry() *Registry {
	return f.registry
}

// Policy returns the current retry policy.
func (f *Forwarder) Policy() Policy {
	return *f.policy.Load()
}

// SetPolicy replaces the retry policy. Streams already started keep the
// policy they started with.
func (f *Forwarder) SetPolicy(p Policy) {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	f.policy.Store(&p)
}

// Cancel signals the in-flight request registered under id. It reports
// whether such a request was found.
func (f *Forwarder) Cancel(id string) bool {
	ok := f.registry.Signal(id)
	f.logger.Info("cancel requested", "request_id", id, "found", ok)
	return ok
}

// Forward performs a buffered completion. When the request carries an ID,
// the upstream call races against its cancellation signal. Failures are
// never retried.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	ctx, span := f.tracer.Start(ctx, "forwarder.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(requestAttributes(req)...),
	)
	defer span.End()

	if len(req.Payload) == 0 {
		return nil, f.fail(span, ModeBuffered, req, start, malformed(ErrEmptyPayload.Error()), ErrEmptyPayload)
	}

	var signalled <-chan struct{}
	if req.ID != "" {
		tok, err := f.registry.Register(req.ID)
		if err != nil {
			return nil, f.fail(span, ModeBuffered, req, start, malformed(err.Error()), err)
		}
		defer f.registry.release(tok)
		signalled = tok.Done()
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type callResult struct {
		body json.RawMessage
		err  error
	}
	done := make(chan callResult, 1)

	go func() {
		body, err := f.upstream.Complete(callCtx, req.Payload)
		done <- callResult{body: body, err: err}
	}()

	select {
	case res := <-done:
		if isClosed(signalled) {
			return nil, f.fail(span, ModeBuffered, req, start, cancelled(), ErrRequestCancelled)
		}
		if res.err != nil {
			return nil, f.fail(span, ModeBuffered, req, start, Classify(res.err), res.err)
		}

		latency := time.Since(start)
		f.metrics.RequestFinished(ModeBuffered, OutcomeLabelSuccess, latency)
		tracing.SetStatus(span, nil)
		f.logger.Debug("request completed",
			"request_id", req.ID,
			"model", req.Model(),
			"latency_ms", latency.Milliseconds(),
		)
		return &Result{Body: res.body, Latency: latency}, nil

	case <-signalled:
		cancel()
		return nil, f.fail(span, ModeBuffered, req, start, cancelled(), ErrRequestCancelled)

	case <-ctx.Done():
		cancel()
		return nil, f.fail(span, ModeBuffered, req, start, Classify(ctx.Err()), ctx.Err())
	}
}

// fail records and logs a terminal failure and returns it as an *Error.
func (f *Forwarder) fail(span trace.Span, mode string, req Request, start time.Time, c Classification, cause error) *Error {
	err := newError(c, cause)

	outcome := OutcomeLabelFailed
	if c.Category == CategoryCancelled {
		outcome = OutcomeLabelCancelled
	}
	f.metrics.RequestFinished(mode, outcome, time.Since(start))
	f.metrics.Failure(string(c.Category))

	span.SetAttributes(
		attribute.String(tracing.AttrErrorCategory, string(c.Category)),
		attribute.Int(tracing.AttrErrorStatus, c.Status),
	)
	tracing.SetError(span, err)
	tracing.SetStatus(span, err)

	f.logFailure(mode, req, err)
	return err
}

func (f *Forwarder) logFailure(mode string, req Request, err *Error) {
	level := slog.LevelError
	switch err.Category {
	case CategoryCancelled:
		level = slog.LevelInfo
	case CategoryRateLimited, CategoryMalformedRequest, CategoryAuthentication:
		level = slog.LevelWarn
	}

	attrs := []any{
		"mode", mode,
		"request_id", req.ID,
		"model", req.Model(),
		"messages", req.MessageCount(),
		"category", string(err.Category),
		"status", err.Status,
		"message", err.Message,
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause.Error())
	}
	f.logger.Log(context.Background(), level, "forward failed", attrs...)

	if f.logger.Enabled(context.Background(), slog.LevelDebug) {
		f.logger.Debug("failed request payload", "request_id", req.ID, "payload", string(req.Payload))
	}
}

func requestAttributes(req Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(tracing.AttrRequestID, req.ID),
		attribute.String(tracing.AttrModel, req.Model()),
	}
}

func malformed(msg string) Classification {
	return Classification{
		Category: CategoryMalformedRequest,
		Status:   http.StatusBadRequest,
		Message:  msg,
	}
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
