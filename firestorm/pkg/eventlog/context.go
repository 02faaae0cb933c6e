package eventlog

import (
	"context"

	"github.com/petermattis/goid"
)

type logKey struct{}

// WithLog binds l to ctx. Goroutines that inherit ctx but do not own l
// record nothing, see EnterContext.
func WithLog(ctx context.Context, l *Log) context.Context {
	return context.WithValue(ctx, logKey{}, l)
}

// FromContext returns the log bound to ctx or nil.
func FromContext(ctx context.Context) *Log {
	l, _ := ctx.Value(logKey{}).(*Log)
	return l
}

// EnterContext opens a span in the log bound to ctx. Without a bound log,
// or on a goroutine other than the one that owns it, nothing is recorded
// and the returned span is inert.
func EnterContext(ctx context.Context, tag string) Span {
	l := FromContext(ctx)
	if l == nil {
		return Span{}
	}
	gid := goid.Get()
	if !l.ownedBy(gid) {
		return Span{}
	}
	l.bind(gid, tag)
	return l.enter(tag)
}

// ClearContext clears the log bound to ctx, if any.
func ClearContext(ctx context.Context) {
	if l := FromContext(ctx); l != nil {
		l.Clear()
	}
}
