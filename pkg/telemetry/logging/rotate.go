package logging

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// RunRotation forces a log file rotation on the given cron schedule until
// ctx is cancelled. Size-based rotation keeps working independently. An empty
// schedule returns immediately.
func (l *Logger) RunRotation(ctx context.Context, schedule string) error {
	if schedule == "" || l.file == nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := l.Rotate(); err != nil {
			l.slog.Error("scheduled log rotation failed", "error", err)
			return
		}
		l.slog.Info("log file rotated", "schedule", schedule)
	}); err != nil {
		return fmt.Errorf("invalid rotation schedule %q: %w", schedule, err)
	}

	c.Start()
	l.slog.Debug("scheduled log rotation started", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
