package forwarder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"mercator-hq/relay/pkg/upstream"
)

func unit(content string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, content)
}

// drain collects outcomes until a terminal one.
func drain(t *testing.T, s *Stream) ([]Event, Outcome) {
	t.Helper()
	var events []Event
	for i := 0; i < 1000; i++ {
		out := s.Next(context.Background())
		if out.Terminal() {
			return events, out
		}
		events = append(events, out.Event)
	}
	t.Fatal("stream did not terminate")
	return nil, Outcome{}
}

func contents(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = gjson.Get(e.Data(), "choices.0.delta.content").String()
	}
	return out
}

func TestStream_Success(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("Hel"), unit("lo")}},
	}}
	f, sleeper := newTestForwarder(up, DefaultPolicy())

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-1"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}

	events, final := drain(t, s)

	if got := contents(events); fmt.Sprint(got) != "[Hel lo]" {
		t.Errorf("contents = %q", got)
	}
	if final.Kind != OutcomeDone || final.Event != Done {
		t.Errorf("final = %+v, want OutcomeDone with terminator", final)
	}
	if len(sleeper.recorded()) != 0 {
		t.Errorf("slept %v", sleeper.recorded())
	}
	if f.Registry().Len() != 0 {
		t.Error("token leaked after success")
	}

	// Terminal outcomes repeat.
	if again := s.Next(context.Background()); again.Kind != OutcomeDone {
		t.Errorf("Next() after done = %v", again.Kind)
	}
}

func TestStream_ForcesStreamingPayload(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{{}}}
	f, _ := newTestForwarder(up, DefaultPolicy())

	payload := []byte(`{"model":"gpt-4","messages":[],"stream":false,"stream_options":{"include_usage":false}}`)
	s, err := f.ForwardStream(context.Background(), Request{Payload: payload})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}
	drain(t, s)

	sent := up.payloads[0]
	if !gjson.GetBytes(sent, "stream").Bool() {
		t.Errorf("stream flag not forced: %s", sent)
	}
	if !gjson.GetBytes(sent, "stream_options.include_usage").Bool() {
		t.Errorf("include_usage not forced: %s", sent)
	}
	if gjson.GetBytes(sent, "model").String() != "gpt-4" {
		t.Errorf("model lost: %s", sent)
	}
}

func TestStream_InvalidPayload(t *testing.T) {
	f, _ := newTestForwarder(&fakeUpstream{}, DefaultPolicy())

	for _, payload := range []string{"", "not json", "[1,2]"} {
		_, err := f.ForwardStream(context.Background(), Request{Payload: []byte(payload), ID: "bad"})

		var fwdErr *Error
		if !errors.As(err, &fwdErr) || fwdErr.Category != CategoryMalformedRequest {
			t.Errorf("payload %q: error = %v, want malformed request", payload, err)
		}
	}
	if f.Registry().Len() != 0 {
		t.Error("invalid payload registered a token")
	}
}

func TestStream_CancelMidStream(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("a"), unit("b"), unit("c")}},
	}}
	f, _ := newTestForwarder(up, DefaultPolicy())

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-cancel"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}

	first := s.Next(context.Background())
	if first.Kind != OutcomeEvent {
		t.Fatalf("first outcome = %v, want event", first.Kind)
	}

	if !f.Cancel("s-cancel") {
		t.Fatal("Cancel() = false for a live stream")
	}

	out := s.Next(context.Background())
	if out.Kind != OutcomeCancelled {
		t.Fatalf("outcome after cancel = %v, want cancelled", out.Kind)
	}
	if !errors.Is(out.Err, ErrRequestCancelled) || out.Err.Status != StatusClientClosedRequest {
		t.Errorf("Err = %v", out.Err)
	}

	for i := 0; i < 3; i++ {
		if again := s.Next(context.Background()); again.Kind != OutcomeCancelled {
			t.Fatalf("outcome %d after cancel = %v, want cancelled", i, again.Kind)
		}
	}
	if f.Registry().Len() != 0 {
		t.Error("token leaked after cancellation")
	}
	if !up.readers[0].isClosed() {
		t.Error("upstream reader not closed")
	}
}

func TestStream_CancelInterruptsBlockedRead(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("a")}, block: true},
	}}
	f, _ := newTestForwarder(up, DefaultPolicy())

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-block"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}
	if out := s.Next(context.Background()); out.Kind != OutcomeEvent {
		t.Fatalf("first outcome = %v", out.Kind)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Cancel("s-block")
	}()

	done := make(chan Outcome, 1)
	go func() { done <- s.Next(context.Background()) }()

	select {
	case out := <-done:
		if out.Kind != OutcomeCancelled {
			t.Errorf("outcome = %v, want cancelled", out.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read was not interrupted by Cancel")
	}
}

func TestStream_NonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name     string
		attempt  fakeAttempt
		category Category
	}{
		{
			name:     "auth on open",
			attempt:  fakeAttempt{openErr: &upstream.AuthError{StatusCode: 401, Message: "invalid_api_key"}},
			category: CategoryAuthentication,
		},
		{
			name:     "bad request on open",
			attempt:  fakeAttempt{openErr: &upstream.BadRequestError{Message: "messages is required"}},
			category: CategoryMalformedRequest,
		},
		{
			name:     "rate limit mid-stream",
			attempt:  fakeAttempt{units: []string{unit("a")}, err: &upstream.RateLimitError{Message: "rate_limit_exceeded"}},
			category: CategoryRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{attempts: []fakeAttempt{tt.attempt, {units: []string{unit("never")}}}}
			f, sleeper := newTestForwarder(up, Policy{MaxRetries: 3, BaseDelay: time.Second})

			s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-fail"})
			if err != nil {
				t.Fatalf("ForwardStream() error = %v", err)
			}

			_, final := drain(t, s)
			if final.Kind != OutcomeFailed {
				t.Fatalf("final = %v, want failed", final.Kind)
			}
			if final.Err.Category != tt.category {
				t.Errorf("Category = %q, want %q", final.Err.Category, tt.category)
			}
			if n := len(sleeper.recorded()); n != 0 {
				t.Errorf("slept %d times, want 0", n)
			}
			if n := up.openCount(); n != 1 {
				t.Errorf("opened upstream %d times, want 1", n)
			}
			if f.Registry().Len() != 0 {
				t.Error("token leaked after failure")
			}
		})
	}
}

func TestStream_RetryExhaustion(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 4} {
		t.Run(fmt.Sprintf("max_retries=%d", maxRetries), func(t *testing.T) {
			up := &fakeUpstream{attempts: []fakeAttempt{
				{openErr: &upstream.TimeoutError{Phase: upstream.PhaseConnect, Limit: time.Second}},
			}}
			base := 500 * time.Millisecond
			rec := newFakeRecorder()
			f := New(up, Options{Policy: Policy{MaxRetries: maxRetries, BaseDelay: base}, Metrics: rec})
			sleeper := &fakeSleeper{}
			f.after = sleeper.after

			s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-exhaust"})
			if err != nil {
				t.Fatalf("ForwardStream() error = %v", err)
			}

			_, final := drain(t, s)
			if final.Kind != OutcomeFailed {
				t.Fatalf("final = %v, want failed", final.Kind)
			}
			if final.Err.Category != CategoryUpstreamTimeout || final.Err.Status != 504 {
				t.Errorf("classification = %+v", final.Err.Classification)
			}
			if final.Err.Retryable {
				t.Error("exhausted classification should not be retryable")
			}

			delays := sleeper.recorded()
			if len(delays) != maxRetries {
				t.Fatalf("slept %d times, want %d", len(delays), maxRetries)
			}
			for n, d := range delays {
				if want := base * time.Duration(1<<n); d != want {
					t.Errorf("delay[%d] = %v, want %v", n, d, want)
				}
			}
			if got := up.openCount(); got != maxRetries+1 {
				t.Errorf("opened upstream %d times, want %d", got, maxRetries+1)
			}
			if rec.retries[string(CategoryUpstreamTimeout)] != maxRetries {
				t.Errorf("retries = %v", rec.retries)
			}
			if f.Registry().Len() != 0 {
				t.Error("token leaked after exhaustion")
			}
		})
	}
}

func TestStream_RetryThenSucceed(t *testing.T) {
	timeout := &upstream.TimeoutError{Phase: upstream.PhaseRead, Limit: time.Second}
	up := &fakeUpstream{attempts: []fakeAttempt{
		{openErr: timeout},
		{openErr: timeout},
		{units: []string{unit("x"), unit("y"), `{"usage":{"total_tokens":3}}`}},
	}}
	f, sleeper := newTestForwarder(up, Policy{MaxRetries: 2, BaseDelay: 2 * time.Second})

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-retry"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}

	events, final := drain(t, s)

	delays := sleeper.recorded()
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Errorf("delays = %v, want [2s 4s]", delays)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if gjson.Get(events[2].Data(), "usage.total_tokens").Int() != 3 {
		t.Errorf("usage event = %s", events[2])
	}
	if final.Kind != OutcomeDone || final.Event != Done {
		t.Errorf("final = %+v, want done", final)
	}
	if s.Attempt() != 2 {
		t.Errorf("Attempt() = %d, want 2", s.Attempt())
	}
}

func TestStream_RetryDoesNotRetractPrefix(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("a"), unit("b")}, err: &upstream.ConnectionError{Message: "reset"}},
		{units: []string{unit("a"), unit("b"), unit("c")}},
	}}
	f, sleeper := newTestForwarder(up, Policy{MaxRetries: 1, BaseDelay: time.Second})

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload()})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}

	events, final := drain(t, s)

	if got := contents(events); fmt.Sprint(got) != "[a b a b c]" {
		t.Errorf("contents = %q, want the failed attempt's prefix repeated", got)
	}
	if final.Kind != OutcomeDone {
		t.Errorf("final = %v", final.Kind)
	}
	if len(sleeper.recorded()) != 1 {
		t.Errorf("delays = %v", sleeper.recorded())
	}
	if !up.readers[0].isClosed() {
		t.Error("failed attempt's reader not closed")
	}
}

func TestStream_CancelDuringBackoff(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{openErr: &upstream.ConnectionError{Message: "refused"}},
		{units: []string{unit("never")}},
	}}
	f := New(up, Options{Policy: Policy{MaxRetries: 2, BaseDelay: time.Hour}})

	sleeping := make(chan time.Duration, 1)
	f.after = func(d time.Duration) <-chan time.Time {
		sleeping <- d
		return make(chan time.Time)
	}

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-backoff"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}

	go func() {
		<-sleeping
		f.Cancel("s-backoff")
	}()

	out := s.Next(context.Background())
	if out.Kind != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", out.Kind)
	}
	if up.openCount() != 1 {
		t.Errorf("opened upstream %d times, want 1", up.openCount())
	}
	if f.Registry().Len() != 0 {
		t.Error("token leaked")
	}
}

func TestStream_ContextCancelled(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("a")}, block: true},
	}}
	f, _ := newTestForwarder(up, DefaultPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	s, err := f.ForwardStream(ctx, Request{Payload: chatPayload(), ID: "s-ctx"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}
	if out := s.Next(ctx); out.Kind != OutcomeEvent {
		t.Fatalf("first outcome = %v", out.Kind)
	}

	time.AfterFunc(20*time.Millisecond, cancel)

	if out := s.Next(ctx); out.Kind != OutcomeCancelled {
		t.Errorf("outcome = %v, want cancelled", out.Kind)
	}
	if f.Registry().Len() != 0 {
		t.Error("token leaked")
	}
}

func TestStream_CloseReleasesResources(t *testing.T) {
	up := &fakeUpstream{attempts: []fakeAttempt{
		{units: []string{unit("a"), unit("b")}},
	}}
	f, _ := newTestForwarder(up, DefaultPolicy())

	s, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-close"})
	if err != nil {
		t.Fatalf("ForwardStream() error = %v", err)
	}
	s.Next(context.Background())

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if f.Registry().Len() != 0 {
		t.Error("token leaked after Close")
	}
	if !up.readers[0].isClosed() {
		t.Error("upstream reader not closed")
	}
	if out := s.Next(context.Background()); out.Kind != OutcomeCancelled {
		t.Errorf("Next() after Close = %v, want cancelled", out.Kind)
	}

	// The ID can be reused once released.
	if _, err := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-close"}); err != nil {
		t.Errorf("reusing a released ID: %v", err)
	}
}

func TestStream_Events(t *testing.T) {
	t.Run("full sequence", func(t *testing.T) {
		up := &fakeUpstream{attempts: []fakeAttempt{{units: []string{unit("a"), unit("b")}}}}
		f, _ := newTestForwarder(up, DefaultPolicy())

		s, _ := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-iter"})

		var got []Event
		for ev, err := range s.Events(context.Background()) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got = append(got, ev)
		}

		if len(got) != 3 || got[2] != Done {
			t.Errorf("events = %q, want two units and the terminator", got)
		}
	})

	t.Run("early break closes", func(t *testing.T) {
		up := &fakeUpstream{attempts: []fakeAttempt{{units: []string{unit("a"), unit("b")}}}}
		f, _ := newTestForwarder(up, DefaultPolicy())

		s, _ := f.ForwardStream(context.Background(), Request{Payload: chatPayload(), ID: "s-break"})
		for range s.Events(context.Background()) {
			break
		}

		if f.Registry().Len() != 0 {
			t.Error("token leaked after early break")
		}
		if !up.readers[0].isClosed() {
			t.Error("reader not closed after early break")
		}
	})

	t.Run("failure yields error", func(t *testing.T) {
		up := &fakeUpstream{attempts: []fakeAttempt{{openErr: &upstream.AuthError{StatusCode: 401}}}}
		f, _ := newTestForwarder(up, DefaultPolicy())

		s, _ := f.ForwardStream(context.Background(), Request{Payload: chatPayload()})

		var lastErr error
		for _, err := range s.Events(context.Background()) {
			lastErr = err
		}

		var fwdErr *Error
		if !errors.As(lastErr, &fwdErr) || fwdErr.Category != CategoryAuthentication {
			t.Errorf("last error = %v, want authentication failure", lastErr)
		}
	})
}

func TestOutcomeKind_String(t *testing.T) {
	tests := map[OutcomeKind]string{
		OutcomeEvent:     "event",
		OutcomeDone:      "done",
		OutcomeCancelled: "cancelled",
		OutcomeFailed:    "failed",
		OutcomeKind(9):   "OutcomeKind(9)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
