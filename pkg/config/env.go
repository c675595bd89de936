package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CustomHeaderPrefix marks environment variables that become upstream
// headers: CUSTOM_HEADER_X_TEAM=a adds "X-TEAM: a".
const CustomHeaderPrefix = "CUSTOM_HEADER_"

type envBinding struct {
	name  string
	field string
	apply func(cfg *Config, val string) error
}

var envBindings = []envBinding{
	{"OPENAI_API_KEY", "upstream.api_key", func(c *Config, v string) error { c.Upstream.APIKey = v; return nil }},
	{"OPENAI_BASE_URL", "upstream.base_url", func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil }},
	{"AZURE_API_VERSION", "upstream.api_version", func(c *Config, v string) error { c.Upstream.APIVersion = v; return nil }},
	{"ANTHROPIC_API_KEY", "auth.client_api_key", func(c *Config, v string) error { c.Auth.ClientAPIKey = v; return nil }},
	{"HOST", "server.host", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"PORT", "server.port", intSetter(func(c *Config) *int { return &c.Server.Port })},
	{"LOG_LEVEL", "telemetry.logging.level", func(c *Config, v string) error { c.Telemetry.Logging.Level = v; return nil }},
	{"RELAY_LOG_FORMAT", "telemetry.logging.format", func(c *Config, v string) error { c.Telemetry.Logging.Format = v; return nil }},
	{"LOG_FILE_PATH", "telemetry.logging.file_path", func(c *Config, v string) error { c.Telemetry.Logging.FilePath = v; return nil }},
	{"LOG_FILE_MAX_BYTES", "telemetry.logging.max_bytes", func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer: %q", v)
		}
		c.Telemetry.Logging.MaxBytes = n
		return nil
	}},
	{"LOG_FILE_BACKUP_COUNT", "telemetry.logging.backup_count", intSetter(func(c *Config) *int { return &c.Telemetry.Logging.BackupCount })},
	{"LOG_TO_CONSOLE", "telemetry.logging.to_console", func(c *Config, v string) error { c.Telemetry.Logging.ToConsole = truthy(v); return nil }},
	{"RELAY_LOG_ROTATE_SCHEDULE", "telemetry.logging.rotate_schedule", func(c *Config, v string) error { c.Telemetry.Logging.RotateSchedule = v; return nil }},
	{"REQUEST_TIMEOUT", "upstream.request_timeout", durationSetter(func(c *Config) *time.Duration { return &c.Upstream.RequestTimeout })},
	{"CONNECT_TIMEOUT", "upstream.connect_timeout", durationSetter(func(c *Config) *time.Duration { return &c.Upstream.ConnectTimeout })},
	{"READ_TIMEOUT", "upstream.read_timeout", durationSetter(func(c *Config) *time.Duration { return &c.Upstream.ReadTimeout })},
	{"WRITE_TIMEOUT", "upstream.write_timeout", durationSetter(func(c *Config) *time.Duration { return &c.Upstream.WriteTimeout })},
	{"POOL_TIMEOUT", "upstream.pool_timeout", durationSetter(func(c *Config) *time.Duration { return &c.Upstream.PoolTimeout })},
	{"MAX_CONNECTIONS", "upstream.max_connections", intSetter(func(c *Config) *int { return &c.Upstream.MaxConnections })},
	{"MAX_KEEPALIVE_CONNECTIONS", "upstream.max_keepalive_connections", intSetter(func(c *Config) *int { return &c.Upstream.MaxKeepalive })},
	{"MAX_RETRIES", "retry.max_retries", intSetter(func(c *Config) *int { return &c.Retry.MaxRetries })},
	{"RELAY_RETRY_BASE_DELAY", "retry.base_delay", durationSetter(func(c *Config) *time.Duration { return &c.Retry.BaseDelay })},
	{"RELAY_RETRY_MAX_DELAY", "retry.max_delay", durationSetter(func(c *Config) *time.Duration { return &c.Retry.MaxDelay })},
	{"RELAY_METRICS_ENABLED", "telemetry.metrics.enabled", boolSetter(func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled })},
	{"RELAY_TRACING_ENABLED", "telemetry.tracing.enabled", boolSetter(func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled })},
	{"RELAY_TRACING_ENDPOINT", "telemetry.tracing.endpoint", func(c *Config, v string) error { c.Telemetry.Tracing.Endpoint = v; return nil }},
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Unset variables leave the field alone; unparsable values
// are reported as field errors.
func applyEnvOverrides(cfg *Config) []FieldError {
	var errs []FieldError

	for _, b := range envBindings {
		val, ok := os.LookupEnv(b.name)
		if !ok || val == "" {
			continue
		}
		if err := b.apply(cfg, val); err != nil {
			errs = append(errs, FieldError{Field: b.field, Message: fmt.Sprintf("%s: %v", b.name, err)})
		}
	}

	applyHeaderOverrides(cfg, os.Environ())

	return errs
}

// applyHeaderOverrides turns CUSTOM_HEADER_* variables into upstream headers.
func applyHeaderOverrides(cfg *Config, environ []string) {
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, CustomHeaderPrefix) || val == "" {
			continue
		}

		name := strings.ReplaceAll(strings.TrimPrefix(key, CustomHeaderPrefix), "_", "-")
		if name == "" {
			continue
		}

		if cfg.Upstream.Headers == nil {
			cfg.Upstream.Headers = make(map[string]string)
		}
		cfg.Upstream.Headers[name] = val
	}
}

// ParseDuration parses a timeout value. Bare numbers are seconds; anything
// else must be a Go duration string such as "1m30s".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or a duration like 10s", s)
	}
	return d, nil
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("must be an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("must be a boolean: %q", v)
		}
		*field(c) = b
		return nil
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
