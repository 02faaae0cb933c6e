package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yandex/firestorm/firestorm/internal/demo"
	"github.com/yandex/firestorm/firestorm/pkg/dump"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/xpflag"
)

func newDemoCmd(a *app) *cobra.Command {
	var (
		output   string
		dumpPath string
		unit     time.Duration
		workload = xpflag.NewOneOf("own_3_twice_call", "own_3_twice_call", "soak")
		flags    *reportFlags
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Profile a built-in workload and save its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			conf, err := a.config()
			if err != nil {
				return err
			}
			if conf.Title == "" {
				conf.Title = workload.String()
			}
			if err := flags.apply(cmd, conf); err != nil {
				return err
			}

			var f func(ctx context.Context)
			switch workload.String() {
			case "soak":
				f = demo.Soak
			default:
				f = demo.New(unit).OwnThreeTwiceCall
			}

			log, err := report.Bench(ctx, a.logger, output, *conf, f)
			if err != nil {
				return err
			}

			if dumpPath != "" {
				a.logger.Info(ctx, "Writing event log dump", zap.String("path", dumpPath))
				return dump.WriteFile(dumpPath, dump.Snapshot{Label: workload.String(), Events: log.Events()})
			}
			return nil
		},
	}

	flags = addReportFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory to write the report to")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Also save the recorded event log to this file")
	cmd.Flags().DurationVar(&unit, "unit", 100*time.Millisecond, "Length of one sleep step of the workload")
	cmd.Flags().Var(workload, "workload", "Workload to profile, one of "+workload.Variants())
	mustNot(cmd.RegisterFlagCompletionFunc("workload", workload.Complete))
	mustNot(cmd.MarkFlagDirname("output"))

	return cmd
}
