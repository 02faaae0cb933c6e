package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

////////////////////////////////////////////////////////////////////////////////

// FlameGraphSink renders each mode it receives into w. Time axis lines are
// drawn as a flame chart so that siblings keep their order.
type FlameGraphSink struct {
	w    io.Writer
	opts Options
}

var _ Sink = (*FlameGraphSink)(nil)

func NewFlameGraphSink(w io.Writer, opts Options) *FlameGraphSink {
	opts.fillDefault()
	return &FlameGraphSink{w: w, opts: opts}
}

func (s *FlameGraphSink) Consume(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, dir Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return renderTo(s.w, mode, lines, dir, s.opts)
}

func renderTo(w io.Writer, mode aggregate.Mode, lines []collapsed.Line, dir Direction, opts Options) error {
	fg := newFlameGraph(mode, opts)
	fg.SetReversedInput(dir == Reversed)
	if err := fg.RenderLines(emitted(lines, dir), w); err != nil {
		return fmt.Errorf("failed to render %s flame graph: %w", mode, err)
	}
	return nil
}

// Render renders one mode into memory.
func Render(mode aggregate.Mode, lines []collapsed.Line, dir Direction, opts Options) ([]byte, error) {
	opts.fillDefault()
	fg := newFlameGraph(mode, opts)
	fg.SetReversedInput(dir == Reversed)
	if err := fg.AddLines(emitted(lines, dir)); err != nil {
		return nil, fmt.Errorf("failed to render %s flame graph: %w", mode, err)
	}
	return fg.RenderBytes()
}

////////////////////////////////////////////////////////////////////////////////

// CollapsedSink writes the text lines themselves.
type CollapsedSink struct {
	w io.Writer
}

var _ Sink = (*CollapsedSink)(nil)

func NewCollapsedSink(w io.Writer) *CollapsedSink {
	return &CollapsedSink{w: w}
}

func (s *CollapsedSink) Consume(ctx context.Context, _ aggregate.Mode, lines []collapsed.Line, dir Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return encode(s.w, lines, dir)
}
