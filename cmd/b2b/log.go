package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// newLogger builds the stderr logger for one command invocation. The
// --log-level flag wins over the config file.
func newLogger(c *cli.Command, cfg Config) *slog.Logger {
	level := logLevel
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		level = cfg.LogLevel
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
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
