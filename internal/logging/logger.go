// Package logging provides structured logging for the optimization service.
//
// Logger carries map-style fields for HTTP and job code; Zap exposes the same
// sink as a *zap.Logger for the optimizers.
package logging

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Logger represents an active logging object.
type Logger struct {
	zap *zap.Logger
}

// New creates a Logger writing entries at or above level to output.
// format is "json" or "console".
func New(level zapcore.Level, format string, output io.Writer) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var encoder zapcore.Encoder
	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)
	return &Logger{zap: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{zap: l.WithOptions(zap.AddCallerSkip(1))}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithFields returns a new Logger with the specified fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{zap: l.zap.With(toZap(fields)...)}
}

// WithField returns a new Logger with the specified key-value pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithError returns a new Logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zap: l.zap.With(zap.Error(err))}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.zap.Debug(msg, merge(fields)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, fields ...Fields) {
	l.zap.Info(msg, merge(fields)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.zap.Warn(msg, merge(fields)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, fields ...Fields) {
	l.zap.Error(msg, merge(fields)...)
}

// Fatal logs a message at fatal level then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.zap.Fatal(msg, merge(fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// CtxLogger is a logger that can be used with context.
type CtxLogger struct {
	*Logger
}

// FromContext returns a logger from the context or a new one if none exists.
func FromContext(ctx context.Context) *CtxLogger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*CtxLogger); ok {
		return logger
	}
	return &CtxLogger{New(zapcore.InfoLevel, "json", os.Stderr)}
}

// WithContext returns a new context with the logger.
func (l *CtxLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

type ctxLoggerKey struct{}
