package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithConnID tags a context with the id of the accepted connection so
// everything logged while handling it can be correlated.
func WithConnID(ctx context.Context, connID uint64) context.Context {
	return context.WithValue(ctx, contextKey{}, connID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if connID, ok := ctx.Value(contextKey{}).(uint64); ok {
		logger = logger.With("conn_id", connID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
