package replay

import (
	"errors"
	"fmt"

	"github.com/yandex/firestorm/firestorm/pkg/clock"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

var (
	ErrUnbalancedLeave = errors.New("leave without matching enter")
	ErrDanglingSpans   = errors.New("spans left open at the end of the log")
	ErrUnknownEvent    = errors.New("unknown event kind")
	ErrNonMonotonic    = errors.New("clock went backwards")
)

////////////////////////////////////////////////////////////////////////////////

// Frame is an open span on the replay stack. Visitors may move Open forward
// to exclude time they have already accounted for.
type Frame struct {
	Name string
	Open clock.Sample
}

// Completed describes a span whose Leave has just been replayed.
type Completed struct {
	Name    string
	Elapsed clock.Duration
	End     clock.Sample
}

// Visitor receives spans in log order. parent is nil for root spans and
// points into the replay stack otherwise; it is only valid during the call.
type Visitor interface {
	Enter(parent *Frame, name string, time clock.Sample)
	Leave(span Completed, parent *Frame)
}

////////////////////////////////////////////////////////////////////////////////

// CorruptLogError is the panic value raised when a log is not well nested.
type CorruptLogError struct {
	Reason error
	// Index of the offending event, or the log length for dangling spans.
	Index int
	// Names of the spans open at the time of failure, outermost first.
	Open []string
}

func (e *CorruptLogError) Error() string {
	if len(e.Open) == 0 {
		return fmt.Sprintf("replay: corrupt log at event %d: %v", e.Index, e.Reason)
	}
	return fmt.Sprintf("replay: corrupt log at event %d: %v (open: %q)", e.Index, e.Reason, e.Open[len(e.Open)-1])
}

func (e *CorruptLogError) Unwrap() error {
	return e.Reason
}

////////////////////////////////////////////////////////////////////////////////

// Replay walks events once, maintaining the stack of open spans, and reports
// every span to v. A log that is not well nested makes Replay panic with
// *CorruptLogError; such a log has no meaningful call tree.
func Replay(events []eventlog.Event, v Visitor) {
	stack := make([]Frame, 0, 64)

	for i := range events {
		event := &events[i]
		switch event.Kind {
		case eventlog.Enter:
			name := collapsed.Sanitize(event.Tag)
			var parent *Frame
			if n := len(stack); n > 0 {
				parent = &stack[n-1]
				name = collapsed.Join(parent.Name, name)
			}
			v.Enter(parent, name, event.Time)
			stack = append(stack, Frame{Name: name, Open: event.Time})

		case eventlog.Leave:
			n := len(stack)
			if n == 0 {
				panic(&CorruptLogError{Reason: ErrUnbalancedLeave, Index: i})
			}
			top := stack[n-1]
			stack = stack[:n-1]

			var parent *Frame
			if n > 1 {
				parent = &stack[n-2]
			}
			v.Leave(Completed{
				Name:    top.Name,
				Elapsed: event.Time.Sub(top.Open),
				End:     event.Time,
			}, parent)

		default:
			panic(&CorruptLogError{Reason: fmt.Errorf("%w %d", ErrUnknownEvent, event.Kind), Index: i, Open: names(stack)})
		}
	}

	if len(stack) != 0 {
		panic(&CorruptLogError{Reason: ErrDanglingSpans, Index: len(events), Open: names(stack)})
	}
}

func names(stack []Frame) []string {
	res := make([]string, len(stack))
	for i := range stack {
		res[i] = stack[i].Name
	}
	return res
}

////////////////////////////////////////////////////////////////////////////////

type nopVisitor struct{}

func (nopVisitor) Enter(*Frame, string, clock.Sample) {}
func (nopVisitor) Leave(Completed, *Frame)            {}

// Validate replays events without a visitor. It panics exactly like Replay.
func Validate(events []eventlog.Event) {
	Replay(events, nopVisitor{})
}

// Check validates a log without aggregating it. Unlike Replay it returns an
// error instead of panicking, which suits logs that come from outside the
// process. It also rejects logs whose timestamps decrease.
func Check(events []eventlog.Event) (err error) {
	for i := 1; i < len(events); i++ {
		if events[i].Time < events[i-1].Time {
			return &CorruptLogError{Reason: ErrNonMonotonic, Index: i}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			corrupt, ok := r.(*CorruptLogError)
			if !ok {
				panic(r)
			}
			err = corrupt
		}
	}()
	Validate(events)
	return nil
}
