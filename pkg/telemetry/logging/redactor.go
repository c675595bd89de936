package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Credential pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				name:        PatternBearerToken,
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				// OpenAI-style keys, including project keys (sk-proj-...)
				name:        PatternAPIKey,
				regex:       regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{8,}`),
				replacement: "sk-***",
			},
			{
				name:        PatternPassword,
				regex:       regexp.MustCompile(`(password|passwd|pwd)[:=]\s*[^\s]+`),
				replacement: "$1: ***",
			},
		},
	}
}

// RedactString masks credentials inside a free-form string.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}

	return redacted
}

// RedactAttr returns a with its value masked. Values under a sensitive key
// are replaced outright; other strings are scanned for credential patterns.
// Groups are redacted recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}

	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, RedactAPIKey(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))

	default:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		if v.Kind() == slog.KindAny {
			if err, ok := v.Any().(error); ok {
				return slog.String(a.Key, r.RedactString(err.Error()))
			}
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// isSensitiveKey reports whether an attribute key names a credential.
func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)

	switch k {
	case "api_key", "apikey", "x-api-key", "authorization", "password", "secret", "token":
		return true
	}

	for _, suffix := range []string{"_api_key", "_secret", "_password", "access_token", "bearer_token"} {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}

// redactHandler applies a Redactor to every record before passing it on.
type redactHandler struct {
	next     slog.Handler
	redactor *Redactor
}

func newRedactHandler(next slog.Handler, r *Redactor) slog.Handler {
	return &redactHandler{next: next, redactor: r}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, h.redactor.RedactString(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.RedactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactor.RedactAttr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
