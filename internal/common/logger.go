package common

import (
	"log/slog"
	"os"
)

// SetupLogger configures the process-wide slog default.
func SetupLogger(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// LogError logs an error with additional key/value context.
func LogError(err error, msg string, args ...any) {
	args = append([]any{"error", err}, args...)
	slog.Error(msg, args...)
}
