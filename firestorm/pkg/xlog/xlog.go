package xlog

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////

type Logger interface {
	With(fields ...zap.Field) Logger
	WithName(name string) Logger
	WithCallerSkip(level int) Logger

	WithContext(ctx context.Context) BoundLogger
	Zap() *zap.Logger

	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
}

////////////////////////////////////////////////////////////////////////////////

type ctxFieldsKey struct{}

// WrapContext attaches fields to ctx. Every message logged with the returned
// context carries them.
func WrapContext(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev := ContextFields(ctx)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxFieldsKey{}).([]zap.Field)
	return fields
}

////////////////////////////////////////////////////////////////////////////////

type logger struct {
	log *zap.Logger
}

var _ Logger = (*logger)(nil)

////////////////////////////////////////////////////////////////////////////////

func New(log *zap.Logger) Logger {
	return &logger{log}
}

func NewNop() Logger {
	return &logger{zap.NewNop()}
}

func TryNew(log *zap.Logger, err error) (Logger, error) {
	if err != nil {
		return nil, err
	}
	return New(log), nil
}

func (l *logger) Zap() *zap.Logger {
	return l.log
}

////////////////////////////////////////////////////////////////////////////////

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{l.log.With(fields...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{l.log.Named(name)}
}

func (l *logger) WithContext(ctx context.Context) BoundLogger {
	return &boundLogger{l, ctx}
}

func (l *logger) WithCallerSkip(level int) Logger {
	return &logger{l.log.WithOptions(zap.AddCallerSkip(level))}
}

////////////////////////////////////////////////////////////////////////////////

func (l *logger) withCallerSkip(level int) *zap.Logger {
	return l.log.WithOptions(zap.AddCallerSkip(level))
}

func (l *logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.withCallerSkip(1).Debug(msg, contextFields(ctx, fields)...)
}

func (l *logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.withCallerSkip(1).Info(msg, contextFields(ctx, fields)...)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.withCallerSkip(1).Warn(msg, contextFields(ctx, fields)...)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.withCallerSkip(1).Error(msg, contextFields(ctx, fields)...)
}

func (l *logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.withCallerSkip(1).Fatal(msg, contextFields(ctx, fields)...)
}

func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if wrapped := ContextFields(ctx); len(wrapped) > 0 {
		fields = append(append(make([]zap.Field, 0, len(wrapped)+len(fields)+2), wrapped...), fields...)
	}
	return addTraceFields(ctx, fields)
}

func addTraceFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	span := trace.SpanContextFromContext(ctx)
	if span.HasTraceID() {
		fields = append(fields, zap.String("trace.id", span.TraceID().String()))
	}
	if span.HasSpanID() {
		fields = append(fields, zap.String("span.id", span.SpanID().String()))
	}
	return fields
}

////////////////////////////////////////////////////////////////////////////////
