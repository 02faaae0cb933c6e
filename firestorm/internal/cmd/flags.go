package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/render"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xpflag"
)

// reportFlags override the values of the report config.
type reportFlags struct {
	title     string
	format    *xpflag.OneOf
	direction *xpflag.OneOf
	modes     *xpflag.StringList
	minWeight float64
	maxDepth  int
	inverted  bool
	collapsed bool
	pprof     bool
}

func addReportFlags(cmd *cobra.Command) *reportFlags {
	f := &reportFlags{
		format:    xpflag.NewOneOf(string(render.HTMLFormat), string(render.HTMLFormat), string(render.JSONFormat)),
		direction: xpflag.NewOneOf(sink.Reversed.String(), sink.Reversed.String(), sink.Natural.String()),
		modes: xpflag.NewStringList(func(s string) error {
			_, err := aggregate.ParseMode(s)
			return err
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&f.title, "title", "", "Title of the rendered pages")
	flags.Var(f.format, "format", "Page format, one of "+f.format.Variants())
	flags.Var(f.direction, "direction", "Order lines are emitted in, one of "+f.direction.Variants())
	flags.Var(f.modes, "modes", "Comma separated aggregation modes (owntime, timeaxis, merged)")
	flags.Float64Var(&f.minWeight, "min-weight", 0, "Fold frames narrower than this share of the total")
	flags.IntVar(&f.maxDepth, "max-depth", 0, "Truncate stacks deeper than this, 0 disables")
	flags.BoolVar(&f.inverted, "inverted", false, "Draw icicle graphs with the roots at the top")
	flags.BoolVar(&f.collapsed, "collapsed", false, "Also store collapsed lines next to the pages")
	flags.BoolVar(&f.pprof, "pprof", false, "Also store the merged call tree as a pprof profile")

	mustNot(cmd.RegisterFlagCompletionFunc("format", f.format.Complete))
	mustNot(cmd.RegisterFlagCompletionFunc("direction", f.direction.Complete))
	return f
}

func (f *reportFlags) apply(cmd *cobra.Command, conf *report.Config) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		conf.Title = f.title
	}
	if flags.Changed("format") {
		conf.Format = f.format.String()
	}
	if flags.Changed("direction") {
		conf.Direction = f.direction.String()
	}
	if flags.Changed("modes") {
		conf.Modes = f.modes.Values()
	}
	if flags.Changed("min-weight") {
		conf.MinWeight = f.minWeight
	}
	if flags.Changed("max-depth") {
		conf.MaxDepth = f.maxDepth
	}
	if flags.Changed("inverted") {
		conf.Inverted = f.inverted
	}
	if flags.Changed("collapsed") {
		conf.Collapsed = f.collapsed
	}
	if flags.Changed("pprof") {
		conf.PProf = f.pprof
	}
	return conf.Validate()
}
