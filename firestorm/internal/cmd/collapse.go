package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/yandex/firestorm/firestorm/pkg/atomicfs"
	"github.com/yandex/firestorm/firestorm/pkg/dump"
	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xpflag"
)

func newCollapseCmd(a *app) *cobra.Command {
	var (
		output  string
		reverse bool
		mode    = xpflag.NewOneOf(string(aggregate.Merged), modeNames()...)
	)

	cmd := &cobra.Command{
		Use:   "collapse <dump>",
		Short: "Print the collapsed stack lines of one aggregation mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := dump.ReadFile(args[0])
			if err != nil {
				return err
			}

			conf := report.Config{
				Modes:     []string{mode.String()},
				Direction: sink.Natural.String(),
			}
			if reverse {
				conf.Direction = sink.Reversed.String()
			}

			emit := func(w io.Writer) error {
				return report.Emit(cmd.Context(), a.logger, snap.Events, sink.NewCollapsedSink(w), conf)
			}
			if output == "" || output == "-" {
				return emit(cmd.OutOrStdout())
			}
			return atomicfs.WriteWith(output, emit)
		},
	}

	cmd.Flags().Var(mode, "mode", "Aggregation mode, one of "+mode.Variants())
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Print lines last to first")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "File to write the lines to")
	mustNot(cmd.RegisterFlagCompletionFunc("mode", mode.Complete))

	return cmd
}

func modeNames() []string {
	res := make([]string, 0, len(aggregate.Modes))
	for _, mode := range aggregate.Modes {
		res = append(res, string(mode))
	}
	return res
}
