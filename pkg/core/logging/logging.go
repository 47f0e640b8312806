// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     logging
// Description: Structured key/value logging
// License:     MIT
// ============================================================================

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string level to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects the output encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config holds logger configuration
type Config struct {
	Name   string
	Level  Level
	Format Format
	Output io.Writer
}

// Logger is a named structured logger. Entries carry the logger name,
// a message, and optional key/value fields.
type Logger struct {
	mu     sync.Mutex
	name   string
	level  Level
	format Format
	output io.Writer
}

// New creates a logger with default configuration (info level, text format)
func New(name string) *Logger {
	return NewWithConfig(Config{Name: name})
}

// NewWithConfig creates a logger with the specified configuration
func NewWithConfig(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		name:   cfg.Name,
		level:  cfg.Level,
		format: cfg.Format,
		output: out,
	}
}

// WithLevel returns a copy of the logger with the given minimum level
func (l *Logger) WithLevel(level Level) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		name:   l.name,
		level:  level,
		format: l.format,
		output: l.output,
	}
}

// Named returns a child logger whose name extends the parent's
func (l *Logger) Named(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := l.name + "." + name
	if l.name == "" {
		child = name
	}
	return &Logger{
		name:   child,
		level:  l.level,
		format: l.format,
		output: l.output,
	}
}

// Debug logs a debug message with key/value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues...)
}

// Info logs an info message with key/value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message with key/value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues...)
}

// Error logs an error message with key/value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues...)
}

func (l *Logger) log(level Level, msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	fields := toFields(keysAndValues...)
	now := time.Now()

	switch l.format {
	case FormatJSON:
		entry := map[string]interface{}{
			"time":    now.Format(time.RFC3339Nano),
			"level":   level.String(),
			"logger":  l.name,
			"message": msg,
		}
		for k, v := range fields {
			if err, ok := v.(error); ok {
				entry[k] = err.Error()
				continue
			}
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "%s %s [%s] %s (marshal failed: %v)\n",
				now.Format(time.RFC3339), level.String(), l.name, msg, err)
			return
		}
		l.output.Write(append(data, '\n'))

	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%s %-5s [%s] %s",
			now.Format("2006-01-02 15:04:05.000"), level.String(), l.name, msg)

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
		b.WriteByte('\n')
		l.output.Write([]byte(b.String()))
	}
}

// toFields converts key-value pairs to a field map. Odd trailing values
// and non-string keys are dropped.
func toFields(keysAndValues ...interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
