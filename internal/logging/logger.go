/**
 * Structured logging for the hybrid OCR worker.
 *
 * Thin key-value wrapper over the standard library logger so every line
 * carries a component prefix and sorted fields. Debug output is gated by
 * the LOG_LEVEL environment variable.
 */

package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// Level controls which messages a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes leveled key-value log lines with a fixed component prefix.
type Logger struct {
	component string
	level     Level
	out       *log.Logger
}

// New creates a logger for the given component. The minimum level is read
// from LOG_LEVEL (debug/info/warn/error), defaulting to info.
func New(component string) *Logger {
	return &Logger{
		component: component,
		level:     levelFromEnv(),
		out:       log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// WithComponent returns a logger sharing output and level but with a new prefix.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, level: l.level, out: l.out}
}

func levelFromEnv() Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// Fields holds optional structured context for a log line.
type Fields map[string]interface{}

func (l *Logger) Debug(msg string, fields ...Fields) { l.write(LevelDebug, "DEBUG", msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.write(LevelInfo, "INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.write(LevelWarn, "WARN", msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.write(LevelError, "ERROR", msg, fields) }

func (l *Logger) write(level Level, tag, msg string, fields []Fields) {
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] [%s] %s", tag, l.component, msg))
	if len(fields) > 0 && len(fields[0]) > 0 {
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, fields[0][k]))
		}
	}
	l.out.Println(b.String())
}
