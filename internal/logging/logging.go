// Package logging provides a small structured-logging wrapper around zap,
// shared by every component in this server.
package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *Logger

// Config controls how the global logger is constructed.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // file path or "stdout"
	ErrorPath  string // file path or "stderr"
}

// Logger wraps a *zap.Logger.
type Logger struct {
	zap *zap.Logger
}

type ctxKey int

const fieldsKey ctxKey = 0

// contextFields carries request-scoped identifiers threaded through a context.Context.
type contextFields struct {
	TraceID string
	TaskID  string
}

// WithTraceID returns a context carrying the given trace id for logging.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	f := fieldsFrom(ctx)
	f.TraceID = traceID
	return context.WithValue(ctx, fieldsKey, f)
}

// WithTaskID returns a context carrying the given task id for logging.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	f := fieldsFrom(ctx)
	f.TaskID = taskID
	return context.WithValue(ctx, fieldsKey, f)
}

func fieldsFrom(ctx context.Context) contextFields {
	if f, ok := ctx.Value(fieldsKey).(contextFields); ok {
		return f
	}
	return contextFields{}
}

// Init builds and installs the global logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// New builds a standalone logger without touching the global instance.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     rfc3339TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}
	writer, err := openWriteSyncer(outputPath)
	if err != nil {
		return nil, err
	}

	errorPath := cfg.ErrorPath
	if errorPath == "" {
		errorPath = "stderr"
	}
	errWriter, err := openWriteSyncer(errorPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, writer, level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel), zap.ErrorOutput(errWriter))
	return &Logger{zap: zl}, nil
}

func openWriteSyncer(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		return zapcore.AddSync(f), nil
	}
}

func rfc3339TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(time.RFC3339))
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error { return l.zap.Sync() }

// WithContext returns a *zap.Logger annotated with any fields carried on ctx.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	f := fieldsFrom(ctx)
	fields := make([]zap.Field, 0, 2)
	if f.TraceID != "" {
		fields = append(fields, zap.String("trace_id", f.TraceID))
	}
	if f.TaskID != "" {
		fields = append(fields, zap.String("task_id", f.TaskID))
	}
	return l.zap.With(fields...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) { logAt(ctx, "debug", msg, fields) }
func Info(ctx context.Context, msg string, fields ...zap.Field)  { logAt(ctx, "info", msg, fields) }
func Warn(ctx context.Context, msg string, fields ...zap.Field)  { logAt(ctx, "warn", msg, fields) }
func Error(ctx context.Context, msg string, fields ...zap.Field) { logAt(ctx, "error", msg, fields) }
func Fatal(ctx context.Context, msg string, fields ...zap.Field) { logAt(ctx, "fatal", msg, fields) }

func logAt(ctx context.Context, level, msg string, fields []zap.Field) {
	if global == nil {
		return
	}
	l := global.WithContext(ctx)
	switch level {
	case "debug":
		l.Debug(msg, fields...)
	case "info":
		l.Info(msg, fields...)
	case "warn":
		l.Warn(msg, fields...)
	case "error":
		l.Error(msg, fields...)
	case "fatal":
		l.Fatal(msg, fields...)
	}
}

// Sync flushes the global logger, if any.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}

// Get returns the global logger instance, or nil if Init was never called.
func Get() *Logger { return global }
