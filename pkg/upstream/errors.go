package upstream

import (
	"fmt"
	"time"
)

// Phase names the part of an exchange a timeout occurred in.
type Phase string

const (
	PhaseConnect Phase = "connect"
	PhaseRead    Phase = "read"
	PhaseWrite   Phase = "write"

	// PhaseRequest is the end-to-end request deadline.
	PhaseRequest Phase = "request"
)

// TimeoutError reports that one of the configured timeout phases elapsed.
// It satisfies net.Error.
type TimeoutError struct {
	// Phase is the timeout phase that elapsed
	Phase Phase

	// Limit is the configured duration for the phase
	Limit time.Duration

	// Cause is the underlying I/O error
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out after %s", e.Phase, e.Limit)
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Timeout implements net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// Temporary implements net.Error.
func (e *TimeoutError) Temporary() bool { return true }

// ConnectionError reports a transport failure that is not a timeout:
// refused or reset connections, DNS failures, broken streams.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream connection error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream connection error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// PoolTimeoutError reports that no pool slot became free within the pool
// timeout.
type PoolTimeoutError struct {
	Timeout        time.Duration
	MaxConnections int
}

// Error implements the error interface.
func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("upstream connection pool exhausted (%d connections) after waiting %s",
		e.MaxConnections, e.Timeout)
}

// AuthError represents an authentication failure (HTTP 401 or 403).
type AuthError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// RateLimitError represents an upstream rate limit or quota rejection
// (HTTP 429 with a rate-limit body).
type RateLimitError struct {
	// RetryAfter is the delay requested by the upstream (0 if absent)
	RetryAfter time.Duration

	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate_limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("upstream rate_limit exceeded: %s", e.Message)
}

// BadRequestError represents a request rejected as malformed (HTTP 400).
type BadRequestError struct {
	Message string
}

// Error implements the error interface.
func (e *BadRequestError) Error() string {
	return fmt.Sprintf("upstream rejected request: %s", e.Message)
}

// APIError is any other error reported by the upstream API, either as a
// non-2xx status or as an error object inside a stream. StatusCode is 0
// when the upstream did not report one.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream API error: %s", e.Message)
}

// ParseError represents a response body the client could not interpret.
type ParseError struct {
	// Raw is the offending payload, truncated
	Raw string

	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream response parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
