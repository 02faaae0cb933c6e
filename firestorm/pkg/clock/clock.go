package clock

import (
	"time"
)

////////////////////////////////////////////////////////////////////////////////

// Sample is an opaque reading of a monotonic clock in nanoseconds.
// Only differences between samples taken in the same context are meaningful.
type Sample uint64

// Duration is an elapsed interval between two samples, in nanoseconds.
type Duration uint64

// Sub returns the time elapsed between earlier and s.
// Samples taken out of order wrap around instead of failing.
func (s Sample) Sub(earlier Sample) Duration {
	return Duration(s - earlier)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

////////////////////////////////////////////////////////////////////////////////

type Sampler interface {
	Now() Sample
}

////////////////////////////////////////////////////////////////////////////////

type monotonic struct {
	base time.Time
}

var defaultSampler = &monotonic{base: time.Now()}

// Monotonic returns the process-wide sampler backed by the runtime monotonic clock.
func Monotonic() Sampler {
	return defaultSampler
}

func (m *monotonic) Now() Sample {
	return Sample(time.Since(m.base))
}

////////////////////////////////////////////////////////////////////////////////

// Manual is a sampler that only moves when told to.
// It is not safe for concurrent use.
type Manual struct {
	now Sample
}

func NewManual(start Sample) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() Sample {
	return m.now
}

func (m *Manual) Advance(d Duration) {
	m.now += Sample(d)
}

func (m *Manual) Set(s Sample) {
	m.now = s
}

////////////////////////////////////////////////////////////////////////////////
