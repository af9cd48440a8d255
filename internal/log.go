package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// levelTrace sits below slog's debug level
const levelTrace = slog.LevelDebug - 4

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return levelTrace
	}
	return slog.LevelInfo
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE onto a level, defaulting to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	}
	return LogLevelInfo
}

// Logger provides leveled printf-style logging on top of slog
type Logger struct {
	level LogLevel
	sl    *slog.Logger
}

// NewLogger creates a logger writing colored console output to stderr
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	h := tint.NewHandler(w, &tint.Options{
		Level:      level.slogLevel(),
		TimeFormat: "15:04:05",
	})
	return &Logger{level: level, sl: slog.New(h)}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

// With returns a logger that adds attrs to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{level: l.level, sl: l.sl.With(args...)}
}

// Slog exposes the underlying structured logger
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sl.Error(fmt.Sprintf(format, args...))
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sl.Warn(fmt.Sprintf(format, args...))
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sl.Info(fmt.Sprintf(format, args...))
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		l.sl.Debug(fmt.Sprintf(format, args...))
	}
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.level >= LogLevelTrace {
		l.sl.Log(context.Background(), levelTrace, fmt.Sprintf(format, args...))
	}
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
