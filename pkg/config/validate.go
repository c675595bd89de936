package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "upstream.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{Field: "server.port", Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Port)})
	}

	errs = append(errs, positiveDuration("server.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, positiveDuration("server.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, positiveDuration("server.shutdown_timeout", cfg.ShutdownTimeout)...)

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "must be non-negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must be non-negative"})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.APIKey == "" {
		errs = append(errs, FieldError{Field: "upstream.api_key", Message: "is required (set OPENAI_API_KEY)"})
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil {
		errs = append(errs, FieldError{Field: "upstream.base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{Field: "upstream.base_url", Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)})
	} else if u.Host == "" {
		errs = append(errs, FieldError{Field: "upstream.base_url", Message: "missing host"})
	}

	errs = append(errs, positiveDuration("upstream.connect_timeout", cfg.ConnectTimeout)...)
	errs = append(errs, positiveDuration("upstream.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, positiveDuration("upstream.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, positiveDuration("upstream.pool_timeout", cfg.PoolTimeout)...)
	errs = append(errs, positiveDuration("upstream.request_timeout", cfg.RequestTimeout)...)

	if cfg.MaxConnections < 1 {
		errs = append(errs, FieldError{Field: "upstream.max_connections", Message: "must be at least 1"})
	}
	if cfg.MaxKeepalive < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_keepalive_connections", Message: "must be non-negative"})
	} else if cfg.MaxKeepalive > cfg.MaxConnections {
		errs = append(errs, FieldError{
			Field:   "upstream.max_keepalive_connections",
			Message: fmt.Sprintf("must not exceed max_connections (%d)", cfg.MaxConnections),
		})
	}

	for name := range cfg.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\r\n:") {
			errs = append(errs, FieldError{Field: "upstream.headers", Message: fmt.Sprintf("invalid header name %q", name)})
		}
	}

	return errs
}

func validateRetry(cfg *RetryConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "retry.max_retries", Message: "must be non-negative"})
	}
	errs = append(errs, positiveDuration("retry.base_delay", cfg.BaseDelay)...)
	if cfg.MaxDelay < 0 {
		errs = append(errs, FieldError{Field: "retry.max_delay", Message: "must be non-negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("must be json, text, or console, got %q", cfg.Logging.Format)})
	}
	if cfg.Logging.MaxBytes < 1 {
		errs = append(errs, FieldError{Field: "telemetry.logging.max_bytes", Message: "must be positive"})
	}
	if cfg.Logging.BackupCount < 0 {
		errs = append(errs, FieldError{Field: "telemetry.logging.backup_count", Message: "must be non-negative"})
	}
	if cfg.Logging.RotateSchedule != "" {
		if cfg.Logging.FilePath == "" {
			errs = append(errs, FieldError{Field: "telemetry.logging.rotate_schedule", Message: "requires file_path"})
		} else if _, err := cron.ParseStandard(cfg.Logging.RotateSchedule); err != nil {
			errs = append(errs, FieldError{Field: "telemetry.logging.rotate_schedule", Message: fmt.Sprintf("invalid cron spec: %v", err)})
		}
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.LatencyBuckets); i++ {
		if cfg.Metrics.LatencyBuckets[i] <= cfg.Metrics.LatencyBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.latency_buckets", Message: "must be strictly increasing"})
			break
		}
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("must be always, never, or ratio, got %q", cfg.Tracing.Sampler)})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}
	errs = append(errs, positiveDuration("telemetry.tracing.timeout", cfg.Tracing.Timeout)...)

	return errs
}

// positiveDuration rejects non-positive and sub-millisecond durations.
func positiveDuration(field string, d time.Duration) []FieldError {
	if d <= 0 {
		return []FieldError{{Field: field, Message: "must be positive"}}
	}
	if d < time.Millisecond {
		return []FieldError{{Field: field, Message: fmt.Sprintf("%s is below 1ms; durations need a unit such as 10s", d)}}
	}
	return nil
}
