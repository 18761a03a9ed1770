package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the level and the output format ("json" or "text")
type Options struct {
	Level  string
	Format string
}

// New builds the process logger and installs it as the slog default
func New(opts Options) *slog.Logger {
	l := NewWithWriter(opts, os.Stdout)
	slog.SetDefault(l)
	return l
}

// NewWithWriter builds a logger writing to w without touching the default
func NewWithWriter(opts Options, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
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
