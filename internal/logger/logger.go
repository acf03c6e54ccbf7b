package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	levelNames = map[int]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}

	// Default to INFO in production, DEBUG in development
	minLevel atomic.Int32
)

// Logger wraps the standard logger with levels and a component prefix
type Logger struct {
	component string
}

func init() {
	minLevel.Store(LevelInfo)
	if os.Getenv("ENV") == "development" {
		minLevel.Store(LevelDebug)
	}
	if lvl, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		minLevel.Store(int32(lvl))
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{component: component}
}

// ParseLevel converts a level name such as "warn" into its numeric value.
func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return 0, false
}

// SetMinLevel allows changing the minimum log level at runtime
func SetMinLevel(level int) {
	minLevel.Store(int32(level))
}

// Enabled reports whether messages at level would be written.
func Enabled(level int) bool {
	return int32(level) >= minLevel.Load()
}

// With returns a logger for a sub-component, e.g. "realtime.typing".
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "." + sub}
}

func (l *Logger) logf(level int, format string, args ...interface{}) {
	if !Enabled(level) {
		return
	}

	prefix := fmt.Sprintf("[%s][%s] ", levelNames[level], l.component)
	log.Printf(prefix+format, args...)
}

// Debug logs debug information
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Info logs information messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}
