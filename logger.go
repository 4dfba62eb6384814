// Package oauthfilter provides an OAuth 2.0 Authorization Code middleware for
// Go HTTP reverse proxies. It enforces authenticated sessions by redirecting
// unauthenticated users to an external identity provider, persists the session
// as a set of HMAC-bound cookies on the user agent, and transparently renews
// credentials with refresh tokens. No session state is kept server-side.
package oauthfilter

import (
	"io"
	"log"
	"os"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug enables all log messages
	LogLevelDebug LogLevel = iota
	// LogLevelInfo enables info and error messages
	LogLevelInfo
	// LogLevelError enables only error messages
	LogLevelError
	// LogLevelNone disables all logging
	LogLevelNone
)

// ParseLogLevel converts a string log level to LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "debug", "DEBUG":
		return LogLevelDebug
	case "info", "INFO":
		return LogLevelInfo
	case "error", "ERROR":
		return LogLevelError
	case "none", "NONE":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging with separate output streams per level.
// It is safe for concurrent use; each underlying log.Logger serializes writes.
type Logger struct {
	logError *log.Logger
	logInfo  *log.Logger
	logDebug *log.Logger
	level    LogLevel
}

// NewLogger creates a Logger writing errors to stderr and info/debug to stdout.
// Messages below the configured level are discarded.
func NewLogger(level string) *Logger {
	return NewLoggerWithOutput(level, os.Stderr, os.Stdout, os.Stdout)
}

// NewLoggerWithOutput creates a Logger with explicit output streams.
// Nil writers are replaced with io.Discard.
func NewLoggerWithOutput(level string, errorOutput, infoOutput, debugOutput io.Writer) *Logger {
	if errorOutput == nil {
		errorOutput = io.Discard
	}
	if infoOutput == nil {
		infoOutput = io.Discard
	}
	if debugOutput == nil {
		debugOutput = io.Discard
	}
	return &Logger{
		logError: log.New(errorOutput, "ERROR: ", log.Ldate|log.Ltime),
		logInfo:  log.New(infoOutput, "INFO: ", log.Ldate|log.Ltime),
		logDebug: log.New(debugOutput, "DEBUG: ", log.Ldate|log.Ltime),
		level:    ParseLogLevel(level),
	}
}

// NewNoOpLogger returns a logger that discards everything. Used in tests.
func NewNoOpLogger() *Logger {
	return NewLoggerWithOutput("none", nil, nil, nil)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	if l.level <= LogLevelDebug {
		l.logDebug.Print(msg)
	}
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level <= LogLevelDebug {
		l.logDebug.Printf(format, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	if l.level <= LogLevelInfo {
		l.logInfo.Print(msg)
	}
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level <= LogLevelInfo {
		l.logInfo.Printf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	if l.level <= LogLevelError {
		l.logError.Print(msg)
	}
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level <= LogLevelError {
		l.logError.Printf(format, args...)
	}
}
