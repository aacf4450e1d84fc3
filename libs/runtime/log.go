package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the service-wide JSON logger. Level is controlled by
// LOG_LEVEL (debug|info|warn|error), defaulting to info.
func NewLogger(service string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service)
}
