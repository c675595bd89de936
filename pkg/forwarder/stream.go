package forwarder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/relay/pkg/telemetry/tracing"
)

// OutcomeKind tags the result of Stream.Next.
type OutcomeKind int

const (
	// OutcomeEvent carries one framed upstream unit.
	OutcomeEvent OutcomeKind = iota

	// OutcomeDone carries the terminator event. The stream succeeded.
	OutcomeDone

	// OutcomeCancelled ends the stream without a terminator.
	OutcomeCancelled

	// OutcomeFailed ends the stream without a terminator.
	OutcomeFailed
)

// String returns the kind's name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEvent:
		return "event"
	case OutcomeDone:
		return "done"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is one step of a Stream. Event is set for OutcomeEvent and
// OutcomeDone, Err for OutcomeCancelled and OutcomeFailed.
type Outcome struct {
	Kind  OutcomeKind
	Event Event
	Err   *Error
}

// Terminal reports whether the stream has ended.
func (o Outcome) Terminal() bool {
	return o.Kind != OutcomeEvent
}

type streamState int

const (
	stateConnecting streamState = iota
	stateStreaming
	stateRetrying
	stateTerminated
)

// Stream is a pull iterator over the framed events of one streaming
// request. It is not safe for concurrent use; cancel it from elsewhere
// through Forwarder.Cancel.
type Stream struct {
	f      *Forwarder
	req    Request
	token  *Token
	policy Policy

	ctx   context.Context
	span  trace.Span
	start time.Time

	state    streamState
	attempt  int
	reader   UnitReader
	abort    context.CancelFunc
	attSpan  trace.Span
	events   int
	terminal Outcome
}

// ForwardStream prepares a streaming request. The upstream is contacted
// lazily by the first call to Next. The payload is rewritten to request a
// stream with usage accounting whatever the caller asked for.
func (f *Forwarder) ForwardStream(ctx context.Context, req Request) (*Stream, error) {
	start := time.Now()

	ctx, span := f.tracer.Start(ctx, "forwarder.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(requestAttributes(req)...),
	)

	payload, err := streamPayload(req.Payload)
	if err != nil {
		fwdErr := f.fail(span, ModeStream, req, start, malformed(err.Error()), err)
		span.End()
		return nil, fwdErr
	}
	req.Payload = payload

	s := &Stream{
		f:      f,
		req:    req,
		policy: f.Policy(),
		ctx:    ctx,
		span:   span,
		start:  start,
	}

	if req.ID != "" {
		tok, err := f.registry.Register(req.ID)
		if err != nil {
			fwdErr := f.fail(span, ModeStream, req, start, malformed(err.Error()), err)
			span.End()
			return nil, fwdErr
		}
		s.token = tok
	}

	return s, nil
}

// streamPayload forces stream=true and stream_options.include_usage=true.
func streamPayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return nil, errors.New("request payload must be a JSON object")
	}

	out, err := sjson.SetBytes(payload, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to set stream flag: %w", err)
	}
	out, err = sjson.SetBytes(out, "stream_options.include_usage", true)
	if err != nil {
		return nil, fmt.Errorf("failed to set stream options: %w", err)
	}
	return out, nil
}

// Request returns the request as sent upstream.
func (s *Stream) Request() Request {
	return s.req
}

// Attempt returns the 0-based number of the current upstream attempt.
func (s *Stream) Attempt() int {
	return s.attempt
}

// Next advances the stream. Once a terminal outcome has been returned,
// every later call returns it again.
func (s *Stream) Next(ctx context.Context) Outcome {
	for {
		if s.state == stateTerminated {
			return s.terminal
		}
		if out, stop := s.checkpoint(ctx); stop {
			return out
		}

		switch s.state {
		case stateConnecting:
			if out, stop := s.connect(ctx); stop {
				return out
			}

		case stateStreaming:
			if out, ok := s.read(ctx); ok {
				return out
			}

		case stateRetrying:
			if out, stop := s.backoff(ctx); stop {
				return out
			}
		}
	}
}

// connect opens an upstream attempt.
func (s *Stream) connect(ctx context.Context) (Outcome, bool) {
	attemptCtx, abort := context.WithCancel(s.ctx)
	attemptCtx, s.attSpan = s.f.tracer.Start(attemptCtx, "forwarder.attempt",
		trace.WithAttributes(attribute.Int(tracing.AttrAttempt, s.attempt)),
	)
	s.abort = abort

	if s.token != nil {
		go func() {
			select {
			case <-s.token.Done():
				abort()
			case <-attemptCtx.Done():
			}
		}()
	}

	stop := context.AfterFunc(ctx, abort)
	reader, err := s.f.upstream.Stream(attemptCtx, s.req.Payload)
	stop()

	if reader != nil {
		s.reader = reader
	}
	if out, stop := s.checkpoint(ctx); stop {
		return out, true
	}
	if err != nil {
		return s.failure(err)
	}

	s.state = stateStreaming
	return Outcome{}, false
}

// read pulls one unit. It reports ok when out should be returned.
func (s *Stream) read(ctx context.Context) (Outcome, bool) {
	stop := context.AfterFunc(ctx, s.abort)
	unit, err := s.reader.Next(ctx)
	stop()

	// Checked before every emitted unit.
	if out, stop := s.checkpoint(ctx); stop {
		return out, true
	}

	if errors.Is(err, io.EOF) {
		return s.finish(OutcomeDone, Done, nil), true
	}
	if err != nil {
		return s.failure(err)
	}

	event, err := Frame(unit)
	if err != nil {
		return s.failure(err)
	}

	s.events++
	s.f.metrics.StreamEvent()
	return Outcome{Kind: OutcomeEvent, Event: event}, true
}

// failure classifies an attempt failure and either schedules a retry or
// terminates the stream.
func (s *Stream) failure(err error) (Outcome, bool) {
	c := Classify(err)
	s.endAttempt(c)

	if !c.Retryable {
		return s.finish(OutcomeFailed, "", newError(c, err)), true
	}
	if !s.policy.ShouldRetry(c, s.attempt) {
		return s.finish(OutcomeFailed, "", newError(exhausted(s.policy.MaxRetries, c), err)), true
	}

	s.f.metrics.Retry(string(c.Category))
	s.f.logger.Warn("stream attempt failed, will retry",
		"request_id", s.req.ID,
		"model", s.req.Model(),
		"attempt", s.attempt+1,
		"max_retries", s.policy.MaxRetries,
		"category", string(c.Category),
		"delay", s.policy.DelayFor(s.attempt),
		"events_sent", s.events,
		"error", err.Error(),
	)

	s.state = stateRetrying
	return Outcome{}, false
}

// backoff waits before the next attempt, watching for cancellation.
func (s *Stream) backoff(ctx context.Context) (Outcome, bool) {
	var signalled <-chan struct{}
	if s.token != nil {
		signalled = s.token.Done()
	}

	select {
	case <-s.f.after(s.policy.DelayFor(s.attempt)):
	case <-signalled:
	case <-ctx.Done():
	case <-s.ctx.Done():
	}

	if out, stop := s.checkpoint(ctx); stop {
		return out, true
	}

	s.attempt++
	s.state = stateConnecting
	return Outcome{}, false
}

// checkpoint terminates the stream if cancellation was requested through
// the token or either context.
func (s *Stream) checkpoint(ctx context.Context) (Outcome, bool) {
	if s.token != nil && s.token.IsSet() {
		return s.finish(OutcomeCancelled, "", newError(cancelled(), ErrRequestCancelled)), true
	}
	for _, c := range []context.Context{ctx, s.ctx} {
		if err := c.Err(); err != nil {
			cls := Classify(err)
			kind := OutcomeFailed
			if cls.Category == CategoryCancelled {
				kind = OutcomeCancelled
			}
			return s.finish(kind, "", newError(cls, err)), true
		}
	}
	return Outcome{}, false
}

// endAttempt closes the current upstream attempt.
func (s *Stream) endAttempt(c Classification) {
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
	if s.abort != nil {
		s.abort()
		s.abort = nil
	}
	if s.attSpan != nil {
		if c.Category != "" {
			s.attSpan.SetAttributes(attribute.String(tracing.AttrErrorCategory, string(c.Category)))
		}
		s.attSpan.End()
		s.attSpan = nil
	}
}

// finish moves the stream to its terminal state and releases everything
// it holds.
func (s *Stream) finish(kind OutcomeKind, event Event, err *Error) Outcome {
	var c Classification
	if err != nil {
		c = err.Classification
	}
	s.endAttempt(c)

	s.state = stateTerminated
	s.terminal = Outcome{Kind: kind, Event: event, Err: err}

	if s.token != nil {
		s.f.registry.release(s.token)
	}

	s.span.SetAttributes(
		attribute.Int(tracing.AttrAttempt, s.attempt),
		attribute.Int(tracing.AttrEvents, s.events),
	)

	if err != nil {
		s.f.fail(s.span, ModeStream, s.req, s.start, err.Classification, err.Cause)
	} else {
		latency := time.Since(s.start)
		s.f.metrics.RequestFinished(ModeStream, OutcomeLabelSuccess, latency)
		tracing.SetStatus(s.span, nil)
		s.f.logger.Debug("stream completed",
			"request_id", s.req.ID,
			"model", s.req.Model(),
			"events", s.events,
			"attempts", s.attempt+1,
			"latency_ms", latency.Milliseconds(),
		)
	}
	s.span.End()

	return s.terminal
}

// Close ends the stream early, releasing the upstream connection and the
// request's token. It is a no-op on a terminated stream.
func (s *Stream) Close() error {
	if s.state == stateTerminated {
		return nil
	}
	s.finish(OutcomeCancelled, "", newError(cancelled(), errors.New("stream closed by consumer")))
	return nil
}

// Events adapts the stream to a range-over-func sequence. The sequence
// yields every event including the terminator and ends with a non-nil
// error on cancellation or failure. Breaking out early closes the stream.
func (s *Stream) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.Close()

		for {
			out := s.Next(ctx)
			switch out.Kind {
			case OutcomeEvent:
				if !yield(out.Event, nil) {
					return
				}
			case OutcomeDone:
				yield(out.Event, nil)
				return
			default:
				yield("", out.Err)
				return
			}
		}
	}
}
