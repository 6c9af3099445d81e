// Package logger provides module-scoped structured logging built on log/slog.
//
// Components take a Logger and derive their own scope with Module:
//
//	log := logger.Global().Module("pipeline")
//	log.Info("depth map rendered", logger.Int("width", 224), logger.Duration("elapsed", d))
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface injected into components.
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field constructors.

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }
func Error(err error) Field { return Field{Key: "error", Value: err} }
func Float32(key string, value float32) Field { return Field{Key: key, Value: float64(value)} }

// Options configures a slog-backed logger.
type Options struct {
	Level LogLevel
	JSON  bool
}

type slogLogger struct {
	handler slog.Handler
	module  string
	attrs   []slog.Attr
}

// New creates a Logger writing to w.
func New(w io.Writer, opts Options) Logger {
	hopts := &slog.HandlerOptions{Level: ParseLevel(string(opts.Level))}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return &slogLogger{handler: h}
}

// NewDiscard returns a Logger that drops everything. Used in tests.
func NewDiscard() Logger {
	return New(io.Discard, Options{Level: LogLevelError})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &slogLogger{handler: l.handler, module: module, attrs: l.attrs}
}

func (l *slogLogger) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(fields))
	attrs = append(attrs, l.attrs...)
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	return &slogLogger{handler: l.handler, module: l.module, attrs: attrs}
}

func (l *slogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	if l.module != "" {
		r.AddAttrs(slog.String("module", l.module))
	}
	r.AddAttrs(l.attrs...)
	for _, f := range fields {
		r.AddAttrs(fieldToAttr(f))
	}
	_ = l.handler.Handle(ctx, r)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case error:
		return slog.String(f.Key, v.Error())
	case time.Duration:
		return slog.Duration(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}

var (
	globalMu sync.RWMutex
	global   Logger = New(os.Stderr, Options{Level: LogLevelInfo})
)

// SetGlobal replaces the process-wide logger.
func SetGlobal(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the process-wide logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}
