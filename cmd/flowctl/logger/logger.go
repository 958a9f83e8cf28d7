// Package logger sets up the process-wide slog logger for flowctl.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// L is the global logger instance. It discards all output until Init is called.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Verbose bool   // Debug level instead of Warn
	Quiet   bool   // Errors only; wins over Verbose
	File    string // If set, JSON records go here instead of stderr
}

// Init configures logging. Call from the root command before any log calls.
// The returned function closes the log file, if any.
func Init(opts Options) (func() error, error) {
	level := slog.LevelWarn
	switch {
	case opts.Quiet:
		level = slog.LevelError
	case opts.Verbose:
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	if opts.File == "" {
		L = slog.New(slog.NewTextHandler(os.Stderr, hopts))
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	L = slog.New(slog.NewJSONHandler(f, hopts))
	return f.Close, nil
}
