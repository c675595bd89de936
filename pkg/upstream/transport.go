package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// newTransport builds the pooled transport. HTTP/2 stays off so that every
// in-flight request holds its own connection and the pool bound is exact.
func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, dialError(ctx, cfg.ConnectTimeout, err)
			}
			return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
		},
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxKeepalive,
		MaxConnsPerHost:       cfg.MaxConnections,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     false,
	}
}

// deadlineConn arms a fresh deadline before every read and write, turning
// the read and write timeouts into idle timeouts per I/O operation.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Read(p)
	if isTimeout(err) {
		return n, &TimeoutError{Phase: PhaseRead, Limit: c.read, Cause: err}
	}
	return n, err
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
		return 0, err
	}
	// A pooled connection has a read pending since it went idle; its
	// deadline must restart with the new request.
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Write(p)
	if isTimeout(err) {
		return n, &TimeoutError{Phase: PhaseWrite, Limit: c.write, Cause: err}
	}
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return err != nil && errors.As(err, &netErr) && netErr.Timeout()
}

func dialError(ctx context.Context, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if isTimeout(err) {
		return &TimeoutError{Phase: PhaseConnect, Limit: timeout, Cause: err}
	}
	return &ConnectionError{Message: "unable to connect", Cause: err}
}

// mapError converts an error from the HTTP client or a body read into one of
// the package's typed errors. Caller cancellation is returned unchanged.
func (c *Client) mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.Canceled):
		return ctxErr
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return &TimeoutError{Phase: PhaseRequest, Limit: c.cfg.RequestTimeout, Cause: err}
	}

	if isTimeout(err) {
		// Transport-generated timeouts: TLS handshake or response headers.
		if strings.Contains(err.Error(), "TLS handshake") {
			return &TimeoutError{Phase: PhaseConnect, Limit: c.cfg.ConnectTimeout, Cause: err}
		}
		return &TimeoutError{Phase: PhaseRead, Limit: c.cfg.ReadTimeout, Cause: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &ConnectionError{Message: "upstream closed the connection mid-response", Cause: err}
	}
	return &ConnectionError{Message: "request failed", Cause: err}
}
