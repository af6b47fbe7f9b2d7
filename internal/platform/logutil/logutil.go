// Package logutil provides nil-safe slog helpers shared across the codebase.
package logutil

import (
	"io"
	"log/slog"
)

// LevelTrace sits below slog.LevelDebug. slog has no trace level of its own.
const LevelTrace = slog.LevelDebug - 4

// noop discards everything. Created once at package init.
var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a logger that discards all output.
func Noop() *slog.Logger { return noop }

// OrNoop returns l when non-nil, otherwise a discard logger. Intended as the
// first line in constructors that accept an optional *slog.Logger.
func OrNoop(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}

// ParseLevel maps a config-file level string to a slog.Level.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
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
