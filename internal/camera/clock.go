package camera

import (
	"context"
	"time"
)

// Clock abstracts time for capture pacing and sync-capture delays.
// Injecting a fake clock makes timing behaviour deterministically
// testable without real sleeping.
type Clock interface {
	// Now returns the current time. The returned value carries Go's
	// monotonic reading, so differences are safe for interval maths.
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, whichever is first.
	// Non-positive durations return immediately.
	Sleep(ctx context.Context, d time.Duration)
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Logger defines the logging interface used across this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
