package forwarder

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// fakeAttempt scripts one upstream stream.
type fakeAttempt struct {
	openErr error
	units   []string
	err     error // returned after the units; nil means io.EOF
	block   bool  // after the units, block until the attempt is aborted
}

type fakeUpstream struct {
	mu       sync.Mutex
	complete func(ctx context.Context, payload []byte) (json.RawMessage, error)
	attempts []fakeAttempt
	opens    int
	payloads [][]byte
	readers  []*fakeReader
}

func (u *fakeUpstream) Complete(ctx context.Context, payload []byte) (json.RawMessage, error) {
	u.mu.Lock()
	u.payloads = append(u.payloads, payload)
	fn := u.complete
	u.mu.Unlock()
	return fn(ctx, payload)
}

func (u *fakeUpstream) Stream(ctx context.Context, payload []byte) (UnitReader, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.payloads = append(u.payloads, payload)
	a := u.attempts[min(u.opens, len(u.attempts)-1)]
	u.opens++

	if a.openErr != nil {
		return nil, a.openErr
	}
	r := &fakeReader{ctx: ctx, units: a.units, err: a.err, block: a.block}
	u.readers = append(u.readers, r)
	return r, nil
}

func (u *fakeUpstream) openCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.opens
}

type fakeReader struct {
	mu     sync.Mutex
	ctx    context.Context
	units  []string
	err    error
	block  bool
	closed bool
}

func (r *fakeReader) Next(ctx context.Context) (json.RawMessage, error) {
	r.mu.Lock()
	if len(r.units) > 0 {
		u := r.units[0]
		r.units = r.units[1:]
		r.mu.Unlock()
		return json.RawMessage(u), nil
	}
	r.mu.Unlock()

	if r.block {
		<-r.ctx.Done()
		return nil, r.ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return nil, io.EOF
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// fakeSleeper records backoff delays and fires immediately.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) after(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (s *fakeSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	finished map[string]int
	retries  map[string]int
	failures map[string]int
	events   int
	inFlight []int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		finished: map[string]int{},
		retries:  map[string]int{},
		failures: map[string]int{},
	}
}

func (r *fakeRecorder) RequestFinished(mode, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[mode+"/"+outcome]++
}

func (r *fakeRecorder) Retry(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[category]++
}

func (r *fakeRecorder) Failure(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[category]++
}

func (r *fakeRecorder) StreamEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
}

func (r *fakeRecorder) InFlight(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = append(r.inFlight, n)
}

func newTestForwarder(up Upstream, policy Policy) (*Forwarder, *fakeSleeper) {
	f := New(up, Options{Policy: policy})
	sleeper := &fakeSleeper{}
	f.after = sleeper.after
	return f, sleeper
}

func chatPayload() json.RawMessage {
	return json.RawMessage(`{"model":"gpt-4","messages":[{"role":"user","content":"Hello"}],"stream":false}`)
}
