package upstream

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultConnectTimeout bounds dialing and the TLS handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds every read from the upstream connection.
	DefaultReadTimeout = 600 * time.Second

	// DefaultWriteTimeout bounds every write to the upstream connection.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultPoolTimeout bounds the wait for a free pool slot.
	DefaultPoolTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds a whole buffered completion.
	DefaultRequestTimeout = 90 * time.Second

	// DefaultMaxConnections is the pool size.
	DefaultMaxConnections = 200

	// DefaultMaxKeepalive is the number of idle connections kept per host.
	DefaultMaxKeepalive = 20

	// DefaultIdleConnTimeout closes pooled connections idle for longer than this.
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultUserAgent is sent unless overridden by a custom header.
	DefaultUserAgent = "relay"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string

	// APIKey authenticates against the upstream.
	APIKey string

	// APIVersion switches the client to Azure OpenAI addressing when set.
	APIVersion string

	// Headers are static headers sent with every request. They override
	// the defaults (Content-Type, User-Agent) on collision.
	Headers map[string]string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PoolTimeout    time.Duration

	// RequestTimeout bounds Complete end to end. Streams are bounded by
	// ReadTimeout per read instead.
	RequestTimeout time.Duration

	MaxConnections int
	MaxKeepalive   int

	// UserAgent replaces DefaultUserAgent.
	UserAgent string
}

// withDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = DefaultPoolTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxKeepalive <= 0 {
		c.MaxKeepalive = DefaultMaxKeepalive
	}
	if c.MaxKeepalive > c.MaxConnections {
		c.MaxKeepalive = c.MaxConnections
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid upstream base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid upstream base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid upstream base URL %q: missing host", c.BaseURL)
	}
	return nil
}
