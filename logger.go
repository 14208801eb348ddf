package arraycache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithKey adds a key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogInsert logs an insert or replace.
func (l *Logger) LogInsert(ctx context.Context, key string, t ElementType, size int, replaced bool) {
	l.DebugContext(ctx, "entry stored",
		"key", key,
		"dtype", t.String(),
		"bytes", size,
		"replaced", replaced,
	)
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, key string, err error) {
	if err != nil {
		l.DebugContext(ctx, "delete missed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "entry deleted",
			"key", key,
		)
	}
}

// LogMiss logs a lookup for an absent key.
func (l *Logger) LogMiss(ctx context.Context, op, key string) {
	l.DebugContext(ctx, "cache miss",
		"op", op,
		"key", key,
	)
}

// LogLoad logs a fetch from a feature source.
func (l *Logger) LogLoad(ctx context.Context, key string, size int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"key", key,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"key", key,
			"bytes", size,
			"duration", duration,
		)
	}
}
