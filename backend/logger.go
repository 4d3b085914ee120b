package backend

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the package-level structured logger.
// All backend code should use this instead of fmt.Printf.
var Logger = slog.Default()

// InitLogger initialises the slog default logger.
// logLevel should be one of: "debug", "info", "warn", "error".
// The LOG_LEVEL and LOG_FORMAT environment variables override the arguments.
func InitLogger(logLevel, logFormat string) *slog.Logger {
	return InitLoggerTo(os.Stdout, logLevel, logFormat)
}

// InitLoggerTo is InitLogger with an explicit destination
func InitLoggerTo(w io.Writer, logLevel, logFormat string) *slog.Logger {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		logLevel = env
	}
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		logFormat = env
	}

	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	Logger = logger
	return logger
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
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
