package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for the relay.
type Config struct {
	// Server configures the inbound HTTP surface.
	Server ServerConfig `yaml:"server"`

	// Upstream configures the chat-completion service requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Retry configures the streaming retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Auth configures client authentication on the inbound surface.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains settings for the inbound HTTP server.
type ServerConfig struct {
	// Host is the interface to bind (default: "0.0.0.0").
	Host string `yaml:"host"`

	// Port is the TCP port to listen on (default: 8082).
	Port int `yaml:"port"`

	// ReadTimeout bounds reading an inbound request including its body.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// IdleTimeout bounds idle keep-alive connections.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits inbound request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits inbound request body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ListenAddress returns the host:port pair the server binds to.
func (s ServerConfig) ListenAddress() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UpstreamConfig contains connection settings for the upstream service.
type UpstreamConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates the relay against the upstream.
	APIKey string `yaml:"api_key"`

	// APIVersion enables Azure deployment routing when non-empty.
	APIVersion string `yaml:"api_version"`

	// Headers are added to every upstream request and win over defaults.
	Headers map[string]string `yaml:"headers"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PoolTimeout    time.Duration `yaml:"pool_timeout"`

	// RequestTimeout bounds a whole non-streaming request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxConnections caps concurrent upstream connections.
	MaxConnections int `yaml:"max_connections"`

	// MaxKeepalive caps idle connections kept for reuse.
	MaxKeepalive int `yaml:"max_keepalive_connections"`
}

// RetryConfig contains the streaming retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the first backoff delay; attempt n waits BaseDelay * 2^n.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps a single backoff delay. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay"`
}

// AuthConfig contains client authentication settings.
type AuthConfig struct {
	// ClientAPIKey, when set, must be presented by callers via x-api-key
	// or an Authorization bearer token. Empty allows all callers.
	ClientAPIKey string `yaml:"client_api_key"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Only the first word is used.
	Level string `yaml:"level"`

	// Format is json, text, or console.
	Format string `yaml:"format"`

	// AddSource adds the source file and line to each record.
	AddSource bool `yaml:"add_source"`

	// Redact masks API keys and bearer tokens in log attributes.
	Redact bool `yaml:"redact"`

	// FilePath is the rotating log file. Empty disables file logging.
	FilePath string `yaml:"file_path"`

	// MaxBytes is the size at which the log file rotates.
	MaxBytes int64 `yaml:"max_bytes"`

	// BackupCount is the number of rotated files kept.
	BackupCount int `yaml:"backup_count"`

	// ToConsole also writes records to stderr.
	ToConsole bool `yaml:"to_console"`

	// RotateSchedule is an optional cron spec that forces a rotation.
	RotateSchedule string `yaml:"rotate_schedule"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets are histogram buckets in seconds.
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampler is always, never, or ratio.
	Sampler     string  `yaml:"sampler"`
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint    string        `yaml:"endpoint"`
	ServiceName string        `yaml:"service_name"`
	Insecure    bool          `yaml:"insecure"`
	Timeout     time.Duration `yaml:"timeout"`
}
