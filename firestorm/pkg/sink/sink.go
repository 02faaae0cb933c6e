package sink

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/render"
)

////////////////////////////////////////////////////////////////////////////////

// Direction is the order in which a sink emits the lines it was given.
type Direction int

const (
	// Natural emits lines in the order the aggregator produced them.
	Natural Direction = iota
	// Reversed emits lines last to first, the order collapsed-stack
	// flame graph tools ingest them in.
	Reversed
)

func (d Direction) String() string {
	switch d {
	case Natural:
		return "natural"
	case Reversed:
		return "reversed"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Sink consumes the lines of one aggregation mode. Sinks never touch the
// event log the lines came from; a failed Consume can be retried.
type Sink interface {
	Consume(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, dir Direction) error
}

////////////////////////////////////////////////////////////////////////////////

type Options struct {
	// Title prefixes the per-mode title of rendered pages.
	Title     string
	Format    render.Format
	Width     float64
	FontSize  float64
	MinWeight float64
	MaxDepth  int
	// Inverted draws icicle graphs, roots at the top.
	Inverted bool

	// Collapsed also stores the collapsed lines next to each rendered page.
	Collapsed bool
	// PProf also stores the merged lines as a gzipped pprof profile.
	PProf     bool
}

func (o *Options) fillDefault() {
	if o.Format == "" {
		o.Format = render.HTMLFormat
	}
}

func ModeTitle(mode aggregate.Mode) string {
	switch mode {
	case aggregate.SelfTimeRanked:
		return "Self time, ranked"
	case aggregate.Chronological:
		return "Time axis"
	case aggregate.Merged:
		return "Merged"
	default:
		return string(mode)
	}
}

func newFlameGraph(mode aggregate.Mode, opts Options) *render.FlameGraph {
	fg := render.NewFlameGraph()
	fg.SetFormat(opts.Format)
	fg.SetEventType("ns")
	fg.SetMinWeight(opts.MinWeight)
	fg.SetDepthLimit(opts.MaxDepth)
	fg.SetInverted(opts.Inverted)
	if opts.Width > 0 {
		fg.SetWidth(opts.Width)
	}
	if opts.FontSize > 0 {
		fg.SetFontSize(opts.FontSize)
	}

	title := ModeTitle(mode)
	if opts.Title != "" {
		title = opts.Title + ": " + title
	}
	fg.SetTitle(title)

	switch mode {
	case aggregate.Chronological:
		fg.SetFlameChart(true)
	case aggregate.SelfTimeRanked:
		fg.SetPalette(render.PaletteCold)
		fg.SetFrameType("Rank")
	}
	return fg
}

// emitted returns lines in the order dir prescribes.
func emitted(lines []collapsed.Line, dir Direction) []collapsed.Line {
	if dir != Reversed {
		return lines
	}
	res := slices.Clone(lines)
	slices.Reverse(res)
	return res
}

func encode(w io.Writer, lines []collapsed.Line, dir Direction) error {
	if dir == Reversed {
		return collapsed.EncodeReversed(lines, w)
	}
	return collapsed.Encode(lines, w)
}
