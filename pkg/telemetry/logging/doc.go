// Package logging configures structured logging for the relay.
//
// # Overview
//
// New builds a log/slog handler chain from config.LoggingConfig:
//   - a rotating log file (lumberjack), sized by max_bytes and backup_count
//   - an optional console sink in json, text, or console (tint) format
//   - credential redaction for API keys, bearer tokens, and passwords
//   - a slog.LevelVar so the level can change on config reload
//
// # Usage
//
//	logger, err := logging.New(&cfg.Telemetry.Logging, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
//	// Request-scoped fields
//	ctx = logging.WithRequestID(ctx, id)
//	logging.FromContext(ctx, nil).Info("request started")
//
// # Levels
//
// ParseLevel reads only the first word of the configured value and falls
// back to info for anything it does not recognize, so a stray inline comment
// in an env file does not stop the relay from starting.
//
// # Rotation
//
// Files rotate when they reach max_bytes. RunRotation additionally rotates on
// a cron schedule (for example "0 0 * * *" for daily files).
package logging
