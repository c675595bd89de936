package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range envBindings {
		t.Setenv(b.name, "")
	}
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, CustomHeaderPrefix) {
			t.Setenv(key, "")
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if got := cfg.Server.ListenAddress(); got != "0.0.0.0:8082" {
		t.Errorf("ListenAddress() = %q, want %q", got, "0.0.0.0:8082")
	}
	if cfg.Upstream.ReadTimeout != 600*time.Second {
		t.Errorf("upstream read timeout = %v, want 600s", cfg.Upstream.ReadTimeout)
	}
	if cfg.Retry.MaxRetries != 2 || cfg.Retry.BaseDelay != time.Second {
		t.Errorf("retry = %+v, want 2 retries with 1s base", cfg.Retry)
	}
	if cfg.Telemetry.Logging.FilePath != "logs/relay.log" {
		t.Errorf("log file = %q", cfg.Telemetry.Logging.FilePath)
	}
	if !cfg.Telemetry.Logging.ToConsole || !cfg.Telemetry.Logging.Redact {
		t.Error("console logging and redaction should default to on")
	}

	// Defaults are valid apart from the missing key.
	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) != 1 || verr.Errors[0].Field != "upstream.api_key" {
		t.Errorf("Validate(Default()) = %v, want only upstream.api_key", err)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
upstream:
  api_key: "sk-test"
  read_timeout: 2m
retry:
  max_retries: 0
telemetry:
  logging:
    format: console
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Upstream.ReadTimeout != 2*time.Minute {
		t.Errorf("read timeout = %v, want 2m", cfg.Upstream.ReadTimeout)
	}
	if cfg.Upstream.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("connect timeout = %v, want default", cfg.Upstream.ConnectTimeout)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("max retries = %d, want explicit 0 preserved", cfg.Retry.MaxRetries)
	}
	if !cfg.Telemetry.Logging.ToConsole {
		t.Error("to_console should keep its default when absent from the file")
	}
	if cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("format = %q, want console", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "server: [", "failed to parse"},
		{"missing api key", "server:\n  port: 9000\n", "upstream.api_key"},
		{"bare integer timeout", "upstream:\n  api_key: k\n  connect_timeout: 10\n", ""},
		{"nanosecond timeout", "upstream:\n  api_key: k\n  connect_timeout: 10ns\n", "durations need a unit"},
		{"keepalive above connections", "upstream:\n  api_key: k\n  max_connections: 5\n  max_keepalive_connections: 6\n", "must not exceed max_connections"},
		{"negative retries", "upstream:\n  api_key: k\nretry:\n  max_retries: -1\n", "retry.max_retries"},
		{"bad scheme", "upstream:\n  api_key: k\n  base_url: ftp://example.com\n", "scheme must be http or https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigWithEnvOverrides_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "https://example.openai.azure.com")
	t.Setenv("AZURE_API_VERSION", "2024-02-01")
	t.Setenv("ANTHROPIC_API_KEY", "client-key")
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "45")
	t.Setenv("READ_TIMEOUT", "2m")
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("LOG_TO_CONSOLE", "no")
	t.Setenv("LOG_LEVEL", "DEBUG # verbose")
	t.Setenv("RELAY_RETRY_BASE_DELAY", "250ms")
	t.Setenv("CUSTOM_HEADER_X_TEAM_NAME", "platform")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Upstream.APIKey != "sk-env" || cfg.Upstream.APIVersion != "2024-02-01" {
		t.Errorf("upstream = %+v", cfg.Upstream)
	}
	if cfg.Auth.ClientAPIKey != "client-key" {
		t.Errorf("client key = %q", cfg.Auth.ClientAPIKey)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Upstream.RequestTimeout != 45*time.Second {
		t.Errorf("request timeout = %v, want 45s", cfg.Upstream.RequestTimeout)
	}
	if cfg.Upstream.ReadTimeout != 2*time.Minute {
		t.Errorf("read timeout = %v, want 2m", cfg.Upstream.ReadTimeout)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("base delay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Telemetry.Logging.ToConsole {
		t.Error("LOG_TO_CONSOLE=no should disable console logging")
	}
	if cfg.Telemetry.Logging.Level != "DEBUG # verbose" {
		t.Errorf("level = %q, want raw value kept for the logger to parse", cfg.Telemetry.Logging.Level)
	}
	if got := cfg.Upstream.Headers["X-TEAM-NAME"]; got != "platform" {
		t.Errorf("custom header = %q, want %q (headers: %v)", got, "platform", cfg.Upstream.Headers)
	}
}

func TestLoadConfigWithEnvOverrides_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("HOST", "127.0.0.1")

	path := writeConfig(t, `
server:
  host: "10.0.0.1"
  port: 7000
upstream:
  api_key: "sk-file"
`)

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Upstream.APIKey != "sk-env" {
		t.Errorf("api key = %q, want env value", cfg.Upstream.APIKey)
	}
	if got := cfg.Server.ListenAddress(); got != "127.0.0.1:7000" {
		t.Errorf("ListenAddress() = %q, want 127.0.0.1:7000", got)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("CONNECT_TIMEOUT", "soon")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %T is not a ValidationError", err)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"server.port", "upstream.connect_timeout", "upstream.api_key"} {
		if !fields[want] {
			t.Errorf("missing field error for %s in %v", want, verr.Errors)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"10", 10 * time.Second, false},
		{" 600 ", 600 * time.Second, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"later", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestApplyHeaderOverrides(t *testing.T) {
	cfg := Default()
	cfg.Upstream.Headers = map[string]string{"X-Existing": "1"}

	applyHeaderOverrides(cfg, []string{
		"CUSTOM_HEADER_X_ORG=acme",
		"CUSTOM_HEADER_=ignored",
		"CUSTOM_HEADER_EMPTY=",
		"OTHER_VAR=skip",
	})

	want := map[string]string{"X-Existing": "1", "X-ORG": "acme"}
	if len(cfg.Upstream.Headers) != len(want) {
		t.Fatalf("headers = %v, want %v", cfg.Upstream.Headers, want)
	}
	for k, v := range want {
		if cfg.Upstream.Headers[k] != v {
			t.Errorf("header %s = %q, want %q", k, cfg.Upstream.Headers[k], v)
		}
	}
}

func TestValidate_Telemetry(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"bad cron", func(c *Config) { c.Telemetry.Logging.RotateSchedule = "every day" }, "telemetry.logging.rotate_schedule"},
		{"schedule without file", func(c *Config) {
			c.Telemetry.Logging.RotateSchedule = "0 0 * * *"
			c.Telemetry.Logging.FilePath = ""
		}, "telemetry.logging.rotate_schedule"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"buckets order", func(c *Config) { c.Telemetry.Metrics.LatencyBuckets = []float64{1, 0.5} }, "telemetry.metrics.latency_buckets"},
		{"sampler", func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" }, "telemetry.tracing.sampler"},
		{"ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 }, "telemetry.tracing.sample_ratio"},
		{"header name", func(c *Config) { c.Upstream.Headers = map[string]string{"Bad Header": "x"} }, "upstream.headers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Upstream.APIKey = "k"
			tt.modify(cfg)

			var verr ValidationError
			if err := Validate(cfg); !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if len(verr.Errors) != 1 || verr.Errors[0].Field != tt.field {
				t.Errorf("errors = %v, want one for %s", verr.Errors, tt.field)
			}
		})
	}

	cfg := Default()
	cfg.Upstream.APIKey = "k"
	cfg.Telemetry.Logging.RotateSchedule = "@daily"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() with @daily schedule = %v", err)
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi error = %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONNECTIONS", "50")

	path := filepath.Join(t.TempDir(), ".env")
	content := "RELAY_TEST_DOTENV=loaded\nMAX_CONNECTIONS=10\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_DOTENV") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("RELAY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("RELAY_TEST_DOTENV = %q, want loaded", got)
	}
	if got := os.Getenv("MAX_CONNECTIONS"); got != "50" {
		t.Errorf("MAX_CONNECTIONS = %q, existing value should win", got)
	}
}
