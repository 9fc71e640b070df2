// Package logging builds the slog loggers used across vecguard. All output
// goes to stderr: stdout is reserved for the MCP protocol.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing to stderr at the given level. With json true
// the output is one JSON object per line, otherwise human-readable text.
func New(level string, json bool) *slog.Logger {
	return NewWithWriter(os.Stderr, level, json)
}

// NewWithWriter creates a logger writing to w. Unrecognized level strings
// fall back to info.
func NewWithWriter(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Noop returns a logger that discards everything. Use in tests and wherever a
// nil logger would otherwise be passed around.
func Noop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
