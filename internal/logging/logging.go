// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls how Setup builds the logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// FilePath, if set, additionally writes JSON log lines to this file.
	FilePath string
}

// DefaultConfig returns the engine's default logging configuration.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Setup builds a JSON slog.Logger per cfg and returns it along with a close
// function that releases any open file handle. Mirrors the teacher's
// Setup(cfg) (*slog.Logger, func(), error) shape, minus file rotation, which
// this engine has no long-lived daemon process to need.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var writers []io.Writer
	writers = append(writers, os.Stderr)

	closeFn := func() {}
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}

// SetupDefault calls Setup with DefaultConfig and panics on error; useful for
// CLI entry points where a logging failure should abort startup immediately.
func SetupDefault() (*slog.Logger, func()) {
	logger, closeFn, err := Setup(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return logger, closeFn
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
