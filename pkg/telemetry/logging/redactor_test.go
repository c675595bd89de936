package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"openai key", "key is sk-abcdefghijklmnop", "key is sk-***"},
		{"project key", "sk-proj-abc_DEF-1234567890", "sk-***"},
		{"bearer", "Authorization: Bearer abc.def-ghi", "Authorization: Bearer ***"},
		{"password", "password=hunter2 rest", "password: *** rest"},
		{"short sk prefix untouched", "task-sk-1", "task-sk-1"},
		{"plain", "upstream read timed out", "upstream read timed out"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.in); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"sensitive key", slog.String("api_key", "secret-value-123"), "secr***"},
		{"short sensitive", slog.String("x-api-key", "abc"), "***"},
		{"client key suffix", slog.String("client_api_key", "0123456789"), "0123***"},
		{"non-string sensitive", slog.Int("token", 42), "***"},
		{"error value", slog.Any("cause", errors.New("401 for sk-abcdefghijklmnop")), "401 for sk-***"},
		{"safe key", slog.String("model", "gpt-4o"), "gpt-4o"},
		{"max_tokens is not a credential", slog.Int("max_tokens", 100), "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactAttr(tt.attr)
			if got.Key != tt.attr.Key {
				t.Errorf("key changed: %q", got.Key)
			}
			if got.Value.String() != tt.want {
				t.Errorf("value = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}

	group := r.RedactAttr(slog.Group("upstream", slog.String("authorization", "Bearer abcdefgh"), slog.String("url", "https://x")))
	attrs := group.Value.Group()
	if len(attrs) != 2 || attrs[0].Value.String() != "Bear***" || attrs[1].Value.String() != "https://x" {
		t.Errorf("group = %v", attrs)
	}
}

func TestRedactHandler_ThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := consoleConfig("json")

	logger, err := New(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Slog().With("api_key", "sk-abcdefghijklmnop").Info("calling upstream with Bearer sk-abcdefghijklmnop",
		"header", "Bearer abcdefghijk",
	)

	out := buf.String()
	if strings.Contains(out, "abcdefghijklmnop") || strings.Contains(out, "abcdefghijk\"") {
		t.Errorf("credential leaked: %s", out)
	}

	buf.Reset()
	cfg.Redact = false
	plain, err := New(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	plain.Slog().Info("raw", "api_key", "sk-abcdefghijklmnop")
	if !strings.Contains(buf.String(), "sk-abcdefghijklmnop") {
		t.Error("redaction disabled but value was changed")
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "***",
		"sk-1234567890abc": "sk-1***",
	}
	for in, want := range tests {
		if got := RedactAPIKey(in); got != want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}
