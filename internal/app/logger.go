package app

import (
	"io"
	"log/slog"
)

// newLogger builds the logger for one App instance. The global logger is
// never touched, so tests can run isolated Apps side by side.
func newLogger(level slog.Level, format string, logW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(logW, opts))
	}
	return slog.New(slog.NewTextHandler(logW, opts))
}
