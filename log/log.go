// Package log is a thin structured-logging shim around go.uber.org/zap,
// used by the tsdb facade to surface Internal-kind errors (spec §7)
// that must never reach a caller verbatim but should still be
// observable.
package log

import (
	"go.uber.org/zap"

	"github.com/valkeymetrics/tsdb/errs"
)

// Logger is the narrow interface the engine depends on, so callers can
// substitute their own *zap.Logger-backed logger or a test double.
type Logger interface {
	InternalError(err error, msg string, fields ...zap.Field)
}

type zapLogger struct {
	l *zap.Logger
}

// New wraps an existing *zap.Logger.
func New(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

// Default returns a Logger backed by zap's production config, writing
// JSON to stderr; falls back to a no-op logger if the encoder can't be
// built (zap.NewProduction only errors on a malformed config).
func Default() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// InternalError logs err at Error level, tagged with its errs.Kind so
// an operator can filter on kind="Internal" without needing to know
// every sentinel value.
func (z *zapLogger) InternalError(err error, msg string, fields ...zap.Field) {
	fields = append([]zap.Field{zap.Error(err), zap.String("kind", errs.Kind(err))}, fields...)
	z.l.Error(msg, fields...)
}
