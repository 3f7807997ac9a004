// Package logger provides the leveled logger used across the application.
// It keeps a printf-style API (Debug/Info/Warn/Error) on top of log/slog so
// every line also carries structured attributes: the component name and,
// when set, the session ID. Three levels are supported: off, normal
// (info/warn/error) and verbose (includes debug). Safe for concurrent use.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level controls the verbosity of the logger.
type Level int32

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// ParseLevel maps "off", "verbose"/"debug" and anything else to a Level.
func ParseLevel(s string) Level {
	switch s {
	case "off", "quiet", "none":
		return LevelOff
	case "verbose", "debug":
		return LevelVerbose
	default:
		return LevelNormal
	}
}

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Logger is a leveled logger. Sub-loggers created with Named or With share
// the parent's level.
type Logger struct {
	level *atomic.Int32
	slog  *slog.Logger
}

// New creates a text logger with the given level, writing to out.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	return NewWithFormat(level, out, FormatText)
}

// NewWithFormat is New with an explicit handler format.
func NewWithFormat(level Level, out io.Writer, format Format) *Logger {
	if out == nil {
		out = os.Stderr
	}
	lv := &atomic.Int32{}
	lv.Store(int32(level))

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &Logger{level: lv, slog: slog.New(h)}
}

// Named returns a sub-logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{level: l.level, slog: l.slog.With("component", component)}
}

// With returns a sub-logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{level: l.level, slog: l.slog.With(args...)}
}

// Slog exposes the underlying slog logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	if l.GetLevel() >= LevelVerbose {
		l.slog.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.slog.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
	}
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.slog.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, args...))
	}
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.slog.Log(context.Background(), slog.LevelError, fmt.Sprintf(format, args...))
	}
}
