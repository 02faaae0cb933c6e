package aggregate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yandex/firestorm/firestorm/pkg/clock"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/replay"
)

////////////////////////////////////////////////////////////////////////////////

type Mode string

const (
	// Chronological keeps spans in the order they happened (a flame chart).
	Chronological Mode = "timeaxis"
	// Merged collapses identical stacks into one bar of exclusive time.
	Merged Mode = "merged"
	// SelfTimeRanked is not a call tree: it encodes exclusive times as a
	// descending bar chart that a stacked-bar renderer draws correctly.
	SelfTimeRanked Mode = "owntime"
)

// Modes lists every mode in the order reports present them.
var Modes = []Mode{SelfTimeRanked, Chronological, Merged}

func ParseMode(s string) (Mode, error) {
	for _, mode := range Modes {
		if string(mode) == s {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation mode %q", s)
}

// Lines replays events and aggregates them according to mode.
// Corrupt logs panic, see replay.Replay.
func Lines(events []eventlog.Event, mode Mode) ([]collapsed.Line, error) {
	switch mode {
	case Chronological:
		return ChronologicalLines(events), nil
	case Merged:
		return MergedLines(events), nil
	case SelfTimeRanked:
		return Rank(MergedLines(events)), nil
	default:
		return nil, fmt.Errorf("unsupported aggregation mode: %s", mode)
	}
}

////////////////////////////////////////////////////////////////////////////////

type chronological struct {
	lines []collapsed.Line
}

func (c *chronological) push(path string, weight clock.Duration) {
	if weight == 0 {
		return
	}
	if n := len(c.lines); n > 0 && c.lines[n-1].Path == path {
		c.lines[n-1].Weight += uint64(weight)
		return
	}
	c.lines = append(c.lines, collapsed.Line{Path: path, Weight: uint64(weight)})
}

// The time a parent spent before this child started is flushed as its own line.
func (c *chronological) Enter(parent *replay.Frame, _ string, time clock.Sample) {
	if parent != nil {
		c.push(parent.Name, time.Sub(parent.Open))
	}
}

func (c *chronological) Leave(span replay.Completed, parent *replay.Frame) {
	c.push(span.Name, span.Elapsed)
	if parent != nil {
		parent.Open = span.End
	}
}

// ChronologicalLines returns one line per uninterrupted stretch of time spent
// in a stack, in the order the stretches happened. Adjacent stretches of the
// same stack are merged.
func ChronologicalLines(events []eventlog.Event) []collapsed.Line {
	c := &chronological{lines: make([]collapsed.Line, 0, len(events)/2)}
	replay.Replay(events, c)
	return c.lines
}

////////////////////////////////////////////////////////////////////////////////

// Exclusive times per path. Arithmetic wraps, so a child temporarily pushes
// its parent "below zero" until the parent's own Leave adds its total back.
type merged map[string]uint64

func (m merged) Enter(*replay.Frame, string, clock.Sample) {}

func (m merged) Leave(span replay.Completed, parent *replay.Frame) {
	m[span.Name] += uint64(span.Elapsed)
	if parent != nil {
		m[parent.Name] -= uint64(span.Elapsed)
	}
}

func (m merged) lines() []collapsed.Line {
	res := make([]collapsed.Line, 0, len(m))
	for path, weight := range m {
		if weight != 0 {
			res = append(res, collapsed.Line{Path: path, Weight: weight})
		}
	}
	slices.SortFunc(res, func(a, b collapsed.Line) int {
		return strings.Compare(a.Path, b.Path)
	})
	return res
}

// MergedLines returns the exclusive time of every distinct stack, sorted by path.
func MergedLines(events []eventlog.Event) []collapsed.Line {
	m := make(merged)
	replay.Replay(events, m)
	return m.lines()
}

// MergeLines sums lines of independently replayed logs path by path.
// Only merged-mode output can be combined this way.
func MergeLines(sets ...[]collapsed.Line) []collapsed.Line {
	m := make(merged)
	for _, lines := range sets {
		for _, line := range lines {
			m[line.Path] += line.Weight
		}
	}
	return m.lines()
}

////////////////////////////////////////////////////////////////////////////////

// RankSeparator replaces the path separator inside ranked labels, so that
// every ranked entry stays a single frame of the synthetic stack.
const RankSeparator = "->"

// Rank turns merged lines into a descending bar chart encoded as nested stacks.
//
// Entries are sorted by weight (descending, ties by path), then each weight is
// replaced with its gap to the next entry, and the k-th line's stack is the
// concatenation of the first k labels. Rendered as a flame graph, the frame of
// the k-th entry is then exactly as wide as its exclusive time.
func Rank(mergedLines []collapsed.Line) []collapsed.Line {
	entries := make([]collapsed.Line, 0, len(mergedLines))
	for _, line := range mergedLines {
		if line.Weight != 0 {
			entries = append(entries, line)
		}
	}

	slices.SortStableFunc(entries, func(a, b collapsed.Line) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		default:
			return strings.Compare(a.Path, b.Path)
		}
	})

	for i := 1; i < len(entries); i++ {
		entries[i-1].Weight -= entries[i].Weight
	}

	res := make([]collapsed.Line, 0, len(entries))
	var path strings.Builder
	for i, entry := range entries {
		if i > 0 {
			path.WriteString(collapsed.Separator)
		}
		path.WriteString(strings.ReplaceAll(entry.Path, collapsed.Separator, RankSeparator))
		if entry.Weight == 0 {
			continue
		}
		res = append(res, collapsed.Line{Path: path.String(), Weight: entry.Weight})
	}
	return res
}
