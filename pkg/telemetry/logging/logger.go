package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mercator-hq/relay/pkg/config"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in logfmt-style text.
	FormatText LogFormat = "text"
	// FormatConsole outputs colorized, human-readable logs on the console
	// and plain text in the log file.
	FormatConsole LogFormat = "console"
)

// Logger owns the relay's slog handler chain: a rotating log file, an
// optional console sink, credential redaction, and a level that can be
// changed while running.
type Logger struct {
	slog  *slog.Logger
	level *slog.LevelVar
	file  *lumberjack.Logger
}

// New builds a Logger from cfg. Console output goes to console, or to
// os.Stderr when console is nil. The log file's directory is created if
// needed.
func New(cfg *config.LoggingConfig, console io.Writer) (*Logger, error) {
	if cfg == nil {
		return nil, errors.New("logging config is nil")
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	l := &Logger{level: level}
	var handlers []slog.Handler

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		l.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    megabytes(cfg.MaxBytes),
			MaxBackups: cfg.BackupCount,
		}

		if format == FormatJSON {
			handlers = append(handlers, slog.NewJSONHandler(l.file, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(l.file, opts))
		}
	}

	if cfg.ToConsole {
		if console == nil {
			console = os.Stderr
		}

		switch format {
		case FormatJSON:
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		case FormatText:
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		case FormatConsole:
			handlers = append(handlers, tint.NewHandler(console, &tint.Options{
				Level:     level,
				AddSource: cfg.AddSource,
				NoColor:   !isTerminal(console),
			}))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = fanout(handlers)
	}

	if cfg.Redact {
		handler = newRedactHandler(handler, NewRedactor())
	}

	l.slog = slog.New(handler)
	return l, nil
}

// Slog returns the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// SetLevel changes the minimum level of every sink. It is safe to call
// while other goroutines are logging.
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Rotate closes the current log file and starts a new one. It is a no-op
// when file logging is disabled.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel parses a level name. Only the first word is considered, so
// values like "INFO  # default" work. Unknown values fall back to info.
func ParseLevel(value string) slog.Level {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return slog.LevelInfo
	}

	switch strings.ToUpper(fields[0]) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseFormat parses a log format string into LogFormat.
func parseFormat(formatStr string) (LogFormat, error) {
	switch strings.ToLower(formatStr) {
	case "json", "":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}

// megabytes converts a byte limit to lumberjack's megabyte granularity,
// rounding up so small limits still rotate.
func megabytes(n int64) int {
	const mb = 1024 * 1024
	if n <= 0 {
		return 0
	}
	return int((n + mb - 1) / mb)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, rec.Level) {
			if err := h.Handle(ctx, rec.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
