package xlog

import (
	"context"

	"go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////

// BoundLogger is a Logger with a fixed context, for code that has no
// context of its own to pass, such as callbacks and http.Server.ErrorLog.
type BoundLogger interface {
	With(fields ...zap.Field) BoundLogger

	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	// Write lets the logger back a *log.Logger; every write is one Error message.
	Write(p []byte) (int, error)
}

type boundLogger struct {
	l   Logger
	ctx context.Context
}

var _ BoundLogger = (*boundLogger)(nil)

func (b *boundLogger) With(fields ...zap.Field) BoundLogger {
	return &boundLogger{l: b.l.With(fields...), ctx: b.ctx}
}

func (b *boundLogger) Debug(msg string, fields ...zap.Field) {
	b.l.WithCallerSkip(1).Debug(b.ctx, msg, fields...)
}

func (b *boundLogger) Info(msg string, fields ...zap.Field) {
	b.l.WithCallerSkip(1).Info(b.ctx, msg, fields...)
}

func (b *boundLogger) Warn(msg string, fields ...zap.Field) {
	b.l.WithCallerSkip(1).Warn(b.ctx, msg, fields...)
}

func (b *boundLogger) Error(msg string, fields ...zap.Field) {
	b.l.WithCallerSkip(1).Error(b.ctx, msg, fields...)
}

func (b *boundLogger) Write(p []byte) (int, error) {
	msg := string(p)
	for len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	b.l.WithCallerSkip(3).Error(b.ctx, msg)
	return len(p), nil
}

////////////////////////////////////////////////////////////////////////////////
