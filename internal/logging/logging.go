package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// levelSilent sits above every standard level and suppresses all output.
const levelSilent = slog.Level(100)

// NewLogger creates a logger writing to w. format is "json" or "text".
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewFileLogger creates a logger appending to path. The parent directory is
// created if missing. The caller closes the returned file.
func NewFileLogger(path string, level slog.Level, format string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level, format), f, nil
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *slog.Logger {
	return NewLogger(io.Discard, levelSilent, "text")
}

// LevelFromString converts debug, info, warn or error (any case) to a level.
// Unrecognized strings map to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off", "silent":
		return levelSilent
	default:
		return slog.LevelInfo
	}
}

// Options selects where and how the CLI logs.
type Options struct {
	Level   string
	Format  string
	File    string // empty logs to stderr
	Verbose bool   // forces debug level
}

// Open builds a logger from opts. The returned closer is never nil.
// If the log file cannot be opened the logger falls back to stderr.
func Open(opts Options) (*slog.Logger, func() error) {
	level := LevelFromString(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}

	if opts.File != "" {
		logger, f, err := NewFileLogger(opts.File, level, opts.Format)
		if err == nil {
			return logger, f.Close
		}
	}
	return NewLogger(os.Stderr, level, opts.Format), func() error { return nil }
}
