package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	currentLevel LogLevel = INFO
	logger                = logrus.New()
)

func init() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Set log level from environment
	SetLevel(ParseLevel(os.Getenv("SQLDATABASE_LOG_LEVEL")))
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// SetLevel sets the logging level
func SetLevel(level LogLevel) {
	currentLevel = level
	switch level {
	case DEBUG:
		logger.SetLevel(logrus.DebugLevel)
	case WARN:
		logger.SetLevel(logrus.WarnLevel)
	case ERROR:
		logger.SetLevel(logrus.ErrorLevel)
	case FATAL:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Level returns the current logging level
func Level() LogLevel {
	return currentLevel
}

// SetOutput redirects log output
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetFormat switches between "text" and "json" output
func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// WithFields returns an entry carrying structured fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return logger.WithFields(logrus.Fields(fields))
}

// formatMessage leaves messages without args untouched so literal % survives
func formatMessage(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	logger.Debug(formatMessage(format, args...))
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logger.Info(formatMessage(format, args...))
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logger.Warn(formatMessage(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logger.Error(formatMessage(format, args...))
}

// Fatal logs a fatal message and exits
func Fatal(format string, args ...interface{}) {
	logger.Fatal(formatMessage(format, args...))
}

// Debugf logs a debug message with formatting
func Debugf(format string, args ...interface{}) {
	Debug(format, args...)
}

// Infof logs an info message with formatting
func Infof(format string, args ...interface{}) {
	Info(format, args...)
}

// Warnf logs a warning message with formatting
func Warnf(format string, args ...interface{}) {
	Warn(format, args...)
}

// Errorf logs an error message with formatting
func Errorf(format string, args ...interface{}) {
	Error(format, args...)
}

// Fatalf logs a fatal message with formatting and exits
func Fatalf(format string, args ...interface{}) {
	Fatal(format, args...)
}
