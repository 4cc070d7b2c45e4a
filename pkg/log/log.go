// Package log configures the process-wide slog default used by the operand
// binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup replaces the slog default with a handler at the given level. An
// unrecognized level falls back to info. Setting LOG_FORMAT=json switches
// from the human-readable text handler to JSON output.
func Setup(logLevel string) {
	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns the default logger tagged with a module attribute.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

func parseLevel(logLevel string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}
