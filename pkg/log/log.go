// Package log configures the process-wide structured logger shared by the
// dripkit binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog handler, tagged with the service name so
// the three binaries are distinguishable in aggregated output. Level is one
// of debug, info, warn, error (default info). LOG_FORMAT=json switches to
// JSON output for log shippers.
func Setup(service, logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", service))
}

// WithModule returns the default logger scoped to one module of the
// service.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
