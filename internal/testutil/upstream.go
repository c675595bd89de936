// Package testutil provides a scripted upstream chat-completion server and
// payload helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// CompletionsPath is the path served by MockUpstream.
const CompletionsPath = "/chat/completions"

// MockUpstream is an httptest server that answers chat-completion requests
// from a script of responses. Each request consumes the next response; the
// last one repeats once the script is exhausted.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.Mutex
	script   []MockResponse
	requests []RecordedRequest
}

// MockResponse defines one scripted answer.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Delay      time.Duration
	Headers    map[string]string

	// StreamChunks are sent as SSE data lines followed by [DONE].
	StreamChunks []string

	// ChunkDelay is slept between stream chunks.
	ChunkDelay time.Duration

	// AbortAfter, when positive, drops the connection after that many
	// chunks without sending [DONE].
	AbortAfter int

	// Hang blocks until the client gives up on the request.
	Hang bool
}

// RecordedRequest is a request received by the mock.
type RecordedRequest struct {
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// NewMockUpstream starts a mock answering with the given script.
func NewMockUpstream(script ...MockResponse) *MockUpstream {
	m := &MockUpstream{script: script}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

// URL returns the mock's base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts the mock down.
func (m *MockUpstream) Close() {
	m.server.CloseClientConnections()
	m.server.Close()
}

// SetScript replaces the remaining responses.
func (m *MockUpstream) SetScript(script ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
}

// RequestCount returns the number of requests received.
func (m *MockUpstream) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockUpstream) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockUpstream) next(r *http.Request, body []byte) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, RecordedRequest{
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})

	if len(m.script) == 0 {
		return MockResponse{}, false
	}
	resp := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	return resp, true
}

func (m *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	resp, ok := m.next(r, body)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Hang {
		<-r.Context().Done()
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	if len(resp.StreamChunks) > 0 {
		m.stream(w, r, resp)
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (m *MockUpstream) stream(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	for i, chunk := range resp.StreamChunks {
		if resp.AbortAfter > 0 && i == resp.AbortAfter {
			abort(w)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()

		if resp.ChunkDelay > 0 {
			select {
			case <-time.After(resp.ChunkDelay):
			case <-r.Context().Done():
				return
			}
		}
	}

	if resp.AbortAfter > 0 {
		abort(w)
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// abort drops the connection so the client sees a truncated chunked body.
func abort(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	conn.Close()
}
