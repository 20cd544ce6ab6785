// Package observability provides structured logging and metrics collection.
//
// Logger wraps zap with a persistent component field. Metrics counts store
// operations (appends, duplicates, keychain ops, HTTP requests) for the
// stats command and the health endpoint.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field. Aliased so callers do not import zap.
type Field = zap.Field

// Field constructors re-exported for call sites.
var (
	String = zap.String
	Int    = zap.Int
	Int64  = zap.Int64
	Bool   = zap.Bool
	Err    = zap.Error
	Any    = zap.Any
)

// Logger wraps zap with a persistent component name.
type Logger struct {
	inner     *zap.Logger
	component string
}

// NewLogger creates a JSON logger for a component writing to stderr.
// level is one of debug, info, warn, error; anything else means info.
func NewLogger(component, level string) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		parseLevel(level),
	)
	return &Logger{
		inner:     zap.New(core),
		component: component,
	}
}

// NewLoggerWithCore creates a logger with a custom zap core.
func NewLoggerWithCore(component string, core zapcore.Core) *Logger {
	return &Logger{
		inner:     zap.New(core),
		component: component,
	}
}

// NewNopLogger returns a logger that discards everything. For tests.
func NewNopLogger() *Logger {
	return &Logger{inner: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a new Logger carrying additional persistent fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{
		inner:     l.inner.With(fields...),
		component: l.component,
	}
}

// Named returns a logger for a sub-component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{inner: l.inner, component: component}
}

// fields prepends the component name.
func (l *Logger) fields(fields []Field) []Field {
	if l.component == "" {
		return fields
	}
	return append([]Field{zap.String("component", l.component)}, fields...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.inner.Debug(msg, l.fields(fields)...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, fields ...Field) {
	l.inner.Info(msg, l.fields(fields)...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.inner.Warn(msg, l.fields(fields)...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, fields ...Field) {
	l.inner.Error(msg, l.fields(fields)...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.inner.Sync()
}

// Component returns the component name associated with this logger.
func (l *Logger) Component() string {
	return l.component
}
