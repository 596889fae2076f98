package observe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: ctx is used to attach trace identifiers, never to cancel a write.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger

	// WithTool returns a logger bound to tool metadata.
	WithTool(meta ToolMeta) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err builds the conventional "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

type zeroLogger struct {
	zl zerolog.Logger
}

// NewLogger builds a Logger from cfg. The returned func closes the rotating
// file when one is configured and is a no-op otherwise.
func NewLogger(cfg LoggingConfig) (Logger, func() error, error) {
	var (
		w      io.Writer = os.Stderr
		closer           = func() error { return nil }
	)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("observe: create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = lj
		closer = lj.Close
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}

	return NewLoggerWithWriter(cfg.Level, w), closer, nil
}

// NewLoggerWithWriter creates a JSON logger writing to w.
// Unknown levels fall back to info.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &zeroLogger{
		zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}
}

func (l *zeroLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zerolog.InfoLevel, msg, fields)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zerolog.WarnLevel, msg, fields)
}

func (l *zeroLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zerolog.ErrorLevel, msg, fields)
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zerolog.DebugLevel, msg, fields)
}

func (l *zeroLogger) With(fields ...Field) Logger {
	zc := l.zl.With()
	for _, f := range fields {
		if isRedactedField(f.Key) {
			zc = zc.Str(f.Key, "[REDACTED]")
			continue
		}
		zc = zc.Interface(f.Key, f.Value)
	}
	return &zeroLogger{zl: zc.Logger()}
}

func (l *zeroLogger) WithTool(meta ToolMeta) Logger {
	fields := []Field{
		{Key: "tool.name", Value: meta.Name},
	}
	if meta.Resource != "" {
		fields = append(fields, Field{Key: "tool.resource", Value: meta.Resource})
	}
	if meta.Category != "" {
		fields = append(fields, Field{Key: "tool.category", Value: meta.Category})
	}
	return l.With(fields...)
}

func (l *zeroLogger) log(ctx context.Context, level zerolog.Level, msg string, fields []Field) {
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}

	for _, f := range fields {
		switch v := f.Value.(type) {
		case nil:
			continue
		case error:
			ev = ev.AnErr(f.Key, v)
		case time.Duration:
			ev = ev.Float64(f.Key+"_ms", float64(v.Microseconds())/1000)
		default:
			if isRedactedField(f.Key) {
				ev = ev.Str(f.Key, "[REDACTED]")
				continue
			}
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

func isRedactedField(key string) bool {
	return contains(RedactedFields, key)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type noopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (l noopLogger) With(...Field) Logger                  { return l }
func (l noopLogger) WithTool(ToolMeta) Logger              { return l }

var (
	_ Logger = (*zeroLogger)(nil)
	_ Logger = noopLogger{}
)
