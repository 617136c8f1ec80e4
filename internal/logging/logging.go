// Package logging configures the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
)

// Init installs a text logger on stderr. level is a name such as "debug" or
// "warn"; when empty, LOG_LEVEL is consulted, then fallback.
func Init(level string, fallback slog.Level) *slog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = fallback
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, bool) {
	switch name {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return slog.LevelError, false
}
