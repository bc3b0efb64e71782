package logging

import (
	"sort"

	"go.uber.org/zap"
)

// Zap returns the underlying zap logger, for components such as the
// optimizers that log with zap fields directly.
func (l *Logger) Zap() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}

// NewZapLogger returns a *zap.Logger that writes to logger's sink.
func NewZapLogger(logger *Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Zap()
}

// toZap converts map fields in key order so that output is stable.
func toZap(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(fields))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func merge(fields []Fields) []zap.Field {
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return toZap(fields[0])
	}
	all := Fields{}
	for _, f := range fields {
		for k, v := range f {
			all[k] = v
		}
	}
	return toZap(all)
}
