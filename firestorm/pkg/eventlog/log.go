package eventlog

import (
	"errors"
	"fmt"

	"github.com/petermattis/goid"

	"github.com/yandex/firestorm/firestorm/pkg/clock"
)

const DefaultCapacity = 8192

var (
	ErrSpanMisuse       = errors.New("span closed out of order or by a foreign context")
	ErrForeignGoroutine = fmt.Errorf("%w: log is owned by another goroutine", ErrSpanMisuse)
)

////////////////////////////////////////////////////////////////////////////////

type Kind uint8

const (
	Enter Kind = iota + 1
	Leave
)

func (k Kind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Leave:
		return "leave"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a single record of the log. Leave events carry no tag.
type Event struct {
	Kind Kind
	Time clock.Sample
	Tag  string
}

////////////////////////////////////////////////////////////////////////////////

// Log is an append-only sequence of events owned by exactly one goroutine.
// The first Enter binds the log to the calling goroutine; Enter and Leave
// from any other goroutine panic until Clear releases it.
type Log struct {
	clock  clock.Sampler
	events []Event

	// Indices of Enter events that have not been closed yet.
	open       []int
	generation uint64

	// Goroutine id of the owner, 0 while unbound.
	owner int64
}

type Option func(l *Log)

func WithClock(sampler clock.Sampler) Option {
	return func(l *Log) {
		l.clock = sampler
	}
}

func WithCapacity(capacity int) Option {
	return func(l *Log) {
		l.events = make([]Event, 0, capacity)
	}
}

func New(opts ...Option) *Log {
	l := &Log{
		clock: clock.Monotonic(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.events == nil {
		l.events = make([]Event, 0, DefaultCapacity)
	}
	return l
}

// Enter records the start of a span. The returned span must be closed
// by the same context, usually with defer:
//
//	defer log.Enter("parse").Leave()
func (l *Log) Enter(tag string) Span {
	l.bind(goid.Get(), tag)
	return l.enter(tag)
}

func (l *Log) enter(tag string) Span {
	now := l.clock.Now()
	index := len(l.events)
	l.events = append(l.events, Event{Kind: Enter, Time: now, Tag: tag})
	l.open = append(l.open, index)
	return Span{log: l, index: index, generation: l.generation}
}

// Clear drops all recorded events but keeps the allocated storage.
// Spans opened before Clear become inert and the log is released by
// its owner.
func (l *Log) Clear() {
	l.events = l.events[:0]
	l.open = l.open[:0]
	l.generation++
	l.owner = 0
}

// bind makes gid the owner of an unbound log and panics if another
// goroutine already owns it.
func (l *Log) bind(gid int64, tag string) {
	switch l.owner {
	case gid:
	case 0:
		l.owner = gid
	default:
		panic(&MisuseError{Tag: tag, Depth: len(l.open), Reason: ErrForeignGoroutine})
	}
}

// ownedBy reports whether gid may record into the log.
func (l *Log) ownedBy(gid int64) bool {
	return l.owner == 0 || l.owner == gid
}

// Events returns the recorded events. The slice is only valid until the next
// Enter, Leave or Clear on this log.
func (l *Log) Events() []Event {
	return l.events
}

func (l *Log) Len() int {
	return len(l.events)
}

// Depth returns the number of spans that are currently open.
func (l *Log) Depth() int {
	return len(l.open)
}

func (l *Log) Cap() int {
	return cap(l.events)
}

func (l *Log) leave(s Span) {
	now := l.clock.Now()
	if s.generation != l.generation {
		return
	}

	n := len(l.open)
	if l.owner != goid.Get() {
		panic(&MisuseError{Tag: l.events[s.index].Tag, Depth: n, Reason: ErrForeignGoroutine})
	}
	if n == 0 || l.open[n-1] != s.index {
		panic(&MisuseError{Tag: l.events[s.index].Tag, Depth: n})
	}
	l.open = l.open[:n-1]
	l.events = append(l.events, Event{Kind: Leave, Time: now})
}

////////////////////////////////////////////////////////////////////////////////

// Span is the handle of an open span. The zero Span is valid and does nothing.
type Span struct {
	log        *Log
	index      int
	generation uint64
}

// Leave records the end of the span. It must be called exactly once, on the
// goroutine that opened it, and only while the span is the innermost open
// span of its log; anything else panics.
func (s Span) Leave() {
	if s.log == nil {
		return
	}
	s.log.leave(s)
}

////////////////////////////////////////////////////////////////////////////////

type MisuseError struct {
	Tag   string
	Depth int
	// Reason wraps ErrSpanMisuse; nil means ErrSpanMisuse itself.
	Reason error
}

func (e *MisuseError) reason() error {
	if e.Reason == nil {
		return ErrSpanMisuse
	}
	return e.Reason
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("eventlog: span %q: %v (open spans: %d)", e.Tag, e.reason(), e.Depth)
}

func (e *MisuseError) Unwrap() error {
	return e.reason()
}
