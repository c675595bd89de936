package forwarder

import (
	"math"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2

	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second
)

// Policy decides whether and when a failed streaming attempt is retried.
type Policy struct {
	// MaxRetries bounds the retries after the first attempt. 0 disables
	// retries.
	MaxRetries int

	// BaseDelay is the delay before retry 0; each later retry doubles it.
	BaseDelay time.Duration

	// MaxDelay caps a single delay when positive. 0 means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// ShouldRetry reports whether a failure classified as c at the given
// 0-based attempt may be retried.
func (p Policy) ShouldRetry(c Classification, attempt int) bool {
	return c.Retryable && attempt >= 0 && attempt < p.MaxRetries
}

// DelayFor returns the wait before retrying after the given attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	d := DelayFor(attempt, p.BaseDelay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// DelayFor returns base * 2^attempt, saturating at the largest duration.
func DelayFor(attempt int, base time.Duration) time.Duration {
	if attempt < 0 || base <= 0 {
		return 0
	}
	if attempt >= 63 || base > time.Duration(math.MaxInt64>>uint(attempt)) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(attempt)
}
