package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger configures structured logging for the application on stdout.
// Source locations are only added when addSource is set.
func SetupLogger(levelName, format string, addSource bool) *slog.Logger {
	return NewLogger(os.Stdout, levelName, format, addSource)
}

// NewLogger builds a logger writing to w and installs it as the default.
func NewLogger(w io.Writer, levelName, format string, addSource bool) *slog.Logger {
	// Default to INFO level
	level := slog.LevelInfo

	if levelName != "" {
		switch strings.ToUpper(levelName) {
		case "DEBUG":
			level = slog.LevelDebug
		case "INFO":
			level = slog.LevelInfo
		case "WARN":
			level = slog.LevelWarn
		case "ERROR":
			level = slog.LevelError
		}
	}

	// Create handler with appropriate format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

type loggerKey struct{}

// ContextWithLogger adds a logger to the context
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext retrieves the logger from context, falls back to default
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequestLogger creates a logger with request-specific fields
func RequestLogger(ctx context.Context, requestID, method, path string) *slog.Logger {
	logger := LoggerFromContext(ctx)
	return logger.With(
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
	)
}