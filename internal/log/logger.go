// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var currentLevel atomic.Uint32

// logger is swapped as a whole by SetOutput so concurrent callers never see a
// half-configured writer.
var logger atomic.Pointer[stdlog.Logger]

func init() {
	logger.Store(newStdLogger(os.Stderr))
	SetLevel(LevelInfo)
}

func newStdLogger(w io.Writer) *stdlog.Logger {
	return stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. The terminal UI uses this to move logs
// into a file while it owns the screen.
func SetOutput(w io.Writer) {
	logger.Store(newStdLogger(w))
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, msg string) {
	if !shouldLog(level) {
		return
	}
	logger.Load().Printf("[%-5s] %s", level, msg)
}

func Debugf(format string, v ...any) { output(LevelDebug, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { output(LevelInfo, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { output(LevelWarn, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { output(LevelError, fmt.Sprintf(format, v...)) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Load().Fatalf("[%-5s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

func Debug(v ...any) { output(LevelDebug, fmt.Sprint(v...)) }
func Info(v ...any)  { output(LevelInfo, fmt.Sprint(v...)) }
func Warn(v ...any)  { output(LevelWarn, fmt.Sprint(v...)) }
func Error(v ...any) { output(LevelError, fmt.Sprint(v...)) }

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	logger.Load().Fatalf("[%-5s] %s", LevelFatal, fmt.Sprint(v...))
}

// Logger prefixes every message with a component name, e.g. "[engine]".
type Logger struct {
	prefix string
}

// Component returns a Logger tagging messages with name.
func Component(name string) Logger {
	return Logger{prefix: "[" + name + "] "}
}

func (l Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, l.prefix+fmt.Sprintf(format, v...))
	}
}

func (l Logger) Infof(format string, v ...any) {
	output(LevelInfo, l.prefix+fmt.Sprintf(format, v...))
}

func (l Logger) Warnf(format string, v ...any) {
	output(LevelWarn, l.prefix+fmt.Sprintf(format, v...))
}

func (l Logger) Errorf(format string, v ...any) {
	output(LevelError, l.prefix+fmt.Sprintf(format, v...))
}
