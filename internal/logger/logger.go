package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Logger is a basic logger wrapper.
type Logger struct {
	level   Level
	logger  *log.Logger
	enabled bool
}

var globalLogger *Logger

// Init initializes the logger. logFile/console mirror the
// sigmaflow.logging config block (§10): write to a file, stdout, or
// both, at the configured level.
func Init(enabled bool, levelStr, logFile string, console bool) error {
	if !enabled {
		globalLogger = &Logger{enabled: false}
		return nil
	}

	level := parseLevel(levelStr)
	var writers []io.Writer

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}

	if console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	globalLogger = &Logger{
		level:   level,
		logger:  log.New(io.MultiWriter(writers...), "", 0),
		enabled: true,
	}

	return nil
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func formatMessage(level Level, component, format string, args ...interface{}) string {
	levelStr := "INFO"
	switch level {
	case Debug:
		levelStr = "DEBUG"
	case Info:
		levelStr = "INFO"
	case Warn:
		levelStr = "WARN"
	case Error:
		levelStr = "ERROR"
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	if component == "" {
		return fmt.Sprintf("[%s] [%s] %s", ts, levelStr, msg)
	}
	return fmt.Sprintf("[%s] [%s] [%s] %s", ts, levelStr, component, msg)
}

func logf(level Level, component, format string, args ...interface{}) {
	if globalLogger == nil || !globalLogger.enabled || globalLogger.level > level {
		return
	}
	globalLogger.logger.Println(formatMessage(level, component, format, args...))
}

// Named is a logger scoped to one pipeline component (ruleset, consumer,
// the sigmaflow binary itself), so every line it emits carries that
// component's name instead of each call site spelling it out in the
// format string by hand.
type Named struct {
	component string
}

// Component returns a logger scoped to name. Every line it emits is
// tagged with name, e.g. Component("ruleset").Warnf(...) logs
// "[...] [WARN] [ruleset] ...".
func Component(name string) *Named {
	return &Named{component: name}
}

// Debugf logs a debug message for this component.
func (n *Named) Debugf(format string, args ...interface{}) { logf(Debug, n.component, format, args...) }

// Infof logs an info message for this component.
func (n *Named) Infof(format string, args ...interface{}) { logf(Info, n.component, format, args...) }

// Warnf logs a warning for this component.
func (n *Named) Warnf(format string, args ...interface{}) { logf(Warn, n.component, format, args...) }

// Errorf logs an error for this component.
func (n *Named) Errorf(format string, args ...interface{}) { logf(Error, n.component, format, args...) }

// Debugf logs an unscoped debug message.
func Debugf(format string, args ...interface{}) { logf(Debug, "", format, args...) }

// Infof logs an unscoped info message.
func Infof(format string, args ...interface{}) { logf(Info, "", format, args...) }

// Warnf logs an unscoped warning.
func Warnf(format string, args ...interface{}) { logf(Warn, "", format, args...) }

// Errorf logs an unscoped error message.
func Errorf(format string, args ...interface{}) { logf(Error, "", format, args...) }
