package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"mercator-hq/relay/pkg/telemetry/tracing"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
)

// maxErrorBody caps how much of a non-2xx response body is read.
const maxErrorBody = 1 << 20

// Client sends chat-completion requests to the upstream API over a bounded
// connection pool. It is safe for concurrent use.
type Client struct {
	cfg       Config
	transport *http.Transport
	client    *http.Client
	pool      *semaphore.Weighted
	headers   http.Header
}

// New creates a client. Zero-valued timeouts and pool sizes take the
// package defaults.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	transport := newTransport(cfg)

	return &Client{
		cfg:       cfg,
		transport: transport,
		client:    &http.Client{Transport: transport},
		pool:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		headers:   buildHeaders(cfg),
	}, nil
}

// buildHeaders merges the default headers with the configured ones. Custom
// headers win on collision, compared case-insensitively.
func buildHeaders(cfg Config) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", cfg.UserAgent)

	for name, value := range cfg.Headers {
		h.Set(name, value)
	}

	if cfg.APIVersion != "" {
		h.Set("api-key", cfg.APIKey)
	} else if cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return h
}

// Headers returns a copy of the headers sent with every request.
func (c *Client) Headers() http.Header {
	return c.headers.Clone()
}

// Endpoint returns the completion URL for model. In Azure mode the model
// names the deployment.
func (c *Client) Endpoint(model string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.APIVersion == "" {
		return base + "/chat/completions"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		base, url.PathEscape(model), url.QueryEscape(c.cfg.APIVersion))
}

// Complete sends a buffered completion request and returns the raw response
// body. The exchange is bounded by the configured request timeout.
func (c *Client) Complete(ctx context.Context, payload []byte) (json.RawMessage, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := c.do(ctx, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.mapError(ctx, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, &ParseError{
			Raw:   truncate(string(body), 512),
			Cause: errors.New("response body is not valid JSON"),
		}
	}

	return json.RawMessage(body), nil
}

// Stream sends a streaming completion request and returns a reader over the
// SSE response once the upstream has answered with a 2xx status. The caller
// must Close the reader.
func (c *Client) Stream(ctx context.Context, payload []byte) (*StreamReader, error) {
	ctx, cancel := context.WithCancel(ctx)

	resp, err := c.do(ctx, payload, true)
	if err != nil {
		cancel()
		return nil, err
	}

	return newStreamReader(resp.Body, cancel, func(err error) error {
		return c.mapError(ctx, err)
	}), nil
}

// do acquires a pool slot, performs the POST and maps failures. On success
// the slot is held until the response body is closed.
func (c *Client) do(ctx context.Context, payload []byte, stream bool) (*http.Response, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	model := gjson.GetBytes(payload, "model").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(model), bytes.NewReader(payload))
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers.Clone()
	tracing.Inject(ctx, req.Header)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	slog.Debug("sending request to upstream",
		"model", model,
		"stream", stream,
		"url", req.URL.Redacted(),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		release()
		return nil, c.mapError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		release()

		slog.Warn("upstream returned error status",
			"model", model,
			"status", resp.StatusCode,
		)
		return nil, statusError(resp, body)
	}

	resp.Body = &releaseBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// acquire takes one pool slot, waiting at most the pool timeout.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.PoolTimeout)
	defer cancel()

	if err := c.pool.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, c.mapError(ctx, ctx.Err())
		}
		return nil, &PoolTimeoutError{Timeout: c.cfg.PoolTimeout, MaxConnections: c.cfg.MaxConnections}
	}

	var once sync.Once
	return func() { once.Do(func() { c.pool.Release(1) }) }, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	slog.Debug("upstream client closed")
	return nil
}

// releaseBody returns the pool slot when the body is closed.
type releaseBody struct {
	io.ReadCloser
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

// statusError maps a non-2xx response to a typed error.
func statusError(resp *http.Response, body []byte) error {
	msg := errorMessage(body, resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: msg}

	case http.StatusTooManyRequests:
		if isRateLimitBody(body) {
			return &RateLimitError{
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    msg,
			}
		}

	case http.StatusBadRequest:
		return &BadRequestError{Message: msg}
	}

	return apiError(resp.StatusCode, body, msg)
}

func apiError(status int, body []byte, msg string) *APIError {
	return &APIError{
		StatusCode: status,
		Type:       gjson.GetBytes(body, "error.type").String(),
		Code:       gjson.GetBytes(body, "error.code").String(),
		Message:    msg,
	}
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte, status int) string {
	for _, path := range []string{"error.message", "message", "error"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return truncate(s, 512)
	}
	if status > 0 {
		return http.StatusText(status)
	}
	return "unknown upstream error"
}

func isRateLimitBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota")
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
