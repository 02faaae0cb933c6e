// Package demo holds small instrumented workloads used by the CLI demo
// command and by end-to-end tests.
package demo

import (
	"context"
	"time"

	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
)

type Workload struct {
	// Unit is the length of one sleep step.
	Unit time.Duration
	// Sleep blocks for d. Tests replace it to advance a manual clock.
	Sleep func(d time.Duration)
}

func New(unit time.Duration) *Workload {
	return &Workload{Unit: unit, Sleep: time.Sleep}
}

func (w *Workload) sleep(ctx context.Context, units int) {
	defer eventlog.EnterContext(ctx, "sleep").Leave()
	w.Sleep(time.Duration(units) * w.Unit)
}

func (w *Workload) zero(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "zero").Leave()
}

func (w *Workload) call(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "call").Leave()
	w.sleep(ctx, 1)
}

// OwnThreeTwiceCall spends one unit of its own time between two calls and a
// two unit sleep.
func (w *Workload) OwnThreeTwiceCall(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "own_3_twice_call").Leave()

	w.call(ctx)
	w.sleep(ctx, 2)
	w.Sleep(w.Unit)
	w.call(ctx)
	w.zero(ctx)
}

////////////////////////////////////////////////////////////////////////////////

// Soak produces a wide and deep tree of very short spans.
func Soak(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "outer()").Leave()
	loop100(ctx)
	a(ctx)
}

func loop100(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "loop_100()").Leave()
	for i := 0; i < 100; i++ {
		eventlog.EnterContext(ctx, "inner").Leave()
	}
}

func a(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "a()").Leave()
	for i := 0; i < 2; i++ {
		b(ctx)
		c(ctx)
		d(ctx)
	}
}

func b(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "B::b()").Leave()
	for i := 0; i < 2; i++ {
		c(ctx)
		d(ctx)
	}
}

func c(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "c()").Leave()
	for i := 0; i < 2; i++ {
		d(ctx)
		e(ctx)
	}
}

func d(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "d()").Leave()
	e(ctx)
	e(ctx)
}

func e(ctx context.Context) {
	defer eventlog.EnterContext(ctx, "e()").Leave()
}
