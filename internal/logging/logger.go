package logging

import (
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

func init() {
	Logger = newLogger(slog.LevelInfo)
}

// SetLevel rebuilds the root logger at the given textual level
// ("debug", "info", "warn", "error"). Unknown values keep info.
func SetLevel(level string) {
	Logger = newLogger(parseLevel(level))
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithComponent(component string) *slog.Logger {
	return Logger.With("component", component)
}
