package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yandex/firestorm/firestorm/pkg/dump"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		output string
		flags  *reportFlags
	)

	cmd := &cobra.Command{
		Use:   "merge <dump>...",
		Short: "Render the merged call tree of several event logs",
		Long: `Render the merged call tree of several event logs, e.g. one per
goroutine or per process. Only merged and owntime pages are produced:
time axes of different contexts do not combine.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			logs := make([][]eventlog.Event, 0, len(args))
			for _, path := range args {
				snap, err := dump.ReadFile(path)
				if err != nil {
					return err
				}
				a.logger.Debug(ctx, "Loaded event log", zap.String("path", path), zap.Int("events", len(snap.Events)))
				logs = append(logs, snap.Events)
			}

			conf, err := a.config()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, conf); err != nil {
				return err
			}

			s := sink.NewDirSink(a.logger, output, conf.SinkOptions())
			return report.EmitMerged(ctx, a.logger, logs, s, *conf)
		},
	}

	flags = addReportFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory to write the report to")
	mustNot(cmd.MarkFlagDirname("output"))

	return cmd
}
