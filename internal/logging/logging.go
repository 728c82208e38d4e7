// =============================================================================
// JPK to PDF - Logging
// =============================================================================
//
// A small leveled logger shared by every package. Components depend on the
// Logger interface only, so callers can plug in their own implementation.
//
// LEVELS:
//   debug < info < warn < error
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is an interface for leveled, printf-style logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a config value ("debug", "info", "warn", "error") into a
// Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// =============================================================================
// DEFAULT LOGGER
// =============================================================================

// defaultLogger writes "[LEVEL] message" lines through the standard library
// logger, dropping anything below its threshold.
type defaultLogger struct {
	out   *log.Logger
	level Level
}

// New creates a Logger writing to w. A nil writer means stderr.
func New(w io.Writer, level Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:   log.New(w, "", log.LstdFlags),
		level: level,
	}
}

func (l *defaultLogger) logf(level Level, tag, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Print("[" + tag + "] " + fmt.Sprintf(msg, args...))
}

func (l *defaultLogger) Debug(msg string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", msg, args...)
}

func (l *defaultLogger) Info(msg string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", msg, args...)
}

func (l *defaultLogger) Warn(msg string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", msg, args...)
}

func (l *defaultLogger) Error(msg string, args ...interface{}) {
	l.logf(LevelError, "ERROR", msg, args...)
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(string, ...interface{}) {}
func (discard) Info(string, ...interface{})  {}
func (discard) Warn(string, ...interface{})  {}
func (discard) Error(string, ...interface{}) {}
