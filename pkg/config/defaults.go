package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8082
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// Upstream defaults
	DefaultBaseURL             = "https://api.openai.com/v1"
	DefaultConnectTimeout      = 10 * time.Second
	DefaultUpstreamReadTimeout = 600 * time.Second
	DefaultWriteTimeout        = 10 * time.Second
	DefaultPoolTimeout         = 30 * time.Second
	DefaultRequestTimeout      = 90 * time.Second
	DefaultMaxConnections      = 200
	DefaultMaxKeepaliveConns   = 20

	// Retry defaults
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 1 * time.Second

	// Logging defaults
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogFilePath    = "logs/relay.log"
	DefaultLogMaxBytes    = 10 * 1024 * 1024
	DefaultLogBackupCount = 5

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "relay"
	DefaultMetricsSubsystem = "forwarder"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "relay"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultLatencyBuckets are the upstream latency histogram buckets in seconds.
var DefaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Default returns a configuration populated with every default value.
// Loading starts from this value so that YAML files only need to name the
// fields they change, including booleans that default to true.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Upstream: UpstreamConfig{
			BaseURL:        DefaultBaseURL,
			ConnectTimeout: DefaultConnectTimeout,
			ReadTimeout:    DefaultUpstreamReadTimeout,
			WriteTimeout:   DefaultWriteTimeout,
			PoolTimeout:    DefaultPoolTimeout,
			RequestTimeout: DefaultRequestTimeout,
			MaxConnections: DefaultMaxConnections,
			MaxKeepalive:   DefaultMaxKeepaliveConns,
		},
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:       DefaultLogLevel,
				Format:      DefaultLogFormat,
				Redact:      true,
				FilePath:    DefaultLogFilePath,
				MaxBytes:    DefaultLogMaxBytes,
				BackupCount: DefaultLogBackupCount,
				ToConsole:   true,
			},
			Metrics: MetricsConfig{
				Enabled:        DefaultMetricsEnabled,
				Path:           DefaultMetricsPath,
				Namespace:      DefaultMetricsNamespace,
				Subsystem:      DefaultMetricsSubsystem,
				LatencyBuckets: append([]float64(nil), DefaultLatencyBuckets...),
			},
			Tracing: TracingConfig{
				Sampler:     DefaultTracingSampler,
				SampleRatio: DefaultTracingSampleRatio,
				Endpoint:    DefaultTracingEndpoint,
				ServiceName: DefaultTracingServiceName,
				Insecure:    true,
				Timeout:     DefaultTracingTimeout,
			},
		},
	}
}

// ApplyDefaults fills fields whose zero value is never meaningful, such as
// an empty host or a zero timeout. Fields where zero is a valid choice
// (MaxRetries, MaxDelay, FilePath) are left alone.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyUpstreamDefaults(&cfg.Upstream)

	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultBaseDelay
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyUpstreamDefaults(cfg *UpstreamConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultUpstreamReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = DefaultPoolTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MaxKeepalive == 0 {
		cfg.MaxKeepalive = DefaultMaxKeepaliveConns
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.MaxBytes == 0 {
		cfg.Logging.MaxBytes = DefaultLogMaxBytes
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.LatencyBuckets) == 0 {
		cfg.Metrics.LatencyBuckets = append([]float64(nil), DefaultLatencyBuckets...)
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
}
