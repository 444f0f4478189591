// Package telemetry supplies the structured-logging collaborator the
// engine threads through every component. The teacher declares a
// `types.Config.Logger Logger` field defaulted by `DefaultLogger()` but
// never carries a definition for either; both are authored here, backed
// by zap rather than a hand-rolled stdlib logger.
package telemetry

import (
	"go.uber.org/zap"
)

// Logger is the narrow logging contract consumed by every component.
// Printf mirrors the teacher's `config.Logger.Printf(...)` call sites
// (see engine/chain_engine.go's onNew/onUpdate/onDelete hooks); the
// structured methods are the idiomatic zap-style entry points new code
// should prefer.
type Logger interface {
	Printf(format string, args ...any)
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	With(kv ...any) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps a *zap.Logger as the engine's Logger.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Printf(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Debugw(msg string, kv ...any)        { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...any)         { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...any)         { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...any)        { l.sugar.Errorw(msg, kv...) }
func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...)}
}

// DefaultLogger builds the production default: a zap production logger
// wrapped in the engine's Logger interface.
func DefaultLogger() Logger {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	return NewZapLogger(z)
}

// NopLogger discards everything; used by tests and the testkit fakes.
func NopLogger() Logger {
	return NewZapLogger(zap.NewNop())
}
