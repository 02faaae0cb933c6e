package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xpflag"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		output  string
		serve   string
		pprofUI string
		browser bool
		input   = xpflag.NewOneOf(inputDump, inputFormats...)
		flags   *reportFlags
	)

	cmd := &cobra.Command{
		Use:   "render <input>",
		Short: "Render an event log dump into flame graphs",
		Long: `Render an event log dump into flame graphs.

By default the pages are written to <output>/firestorm and linked from
<output>/firestorm.html. With --serve they are served over http instead,
with --pprof-ui the merged call tree is opened in the pprof web UI.

Collapsed text and pprof inputs already hold a merged call tree, so only
the merged and owntime pages are produced for them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if serve != "" && pprofUI != "" {
				return errors.New("--serve and --pprof-ui are mutually exclusive")
			}

			src, err := readSource(input.String(), args[0])
			if err != nil {
				return err
			}
			a.logger.Info(ctx, "Loaded input",
				zap.String("path", args[0]),
				zap.String("format", input.String()),
				zap.String("label", src.label),
				src.size(),
			)

			conf, err := a.config()
			if err != nil {
				return err
			}
			if conf.Title == "" {
				conf.Title = src.label
			}
			if err := flags.apply(cmd, conf); err != nil {
				return err
			}

			switch {
			case serve != "":
				s := sink.NewHTTPSink(a.logger, serve, browser, conf.SinkOptions())
				if err := src.emit(ctx, a.logger, s, *conf); err != nil {
					return err
				}
				return s.Serve(ctx)

			case pprofUI != "":
				conf.Modes = []string{string(aggregate.Merged)}
				s := sink.NewPProfSink(a.logger, pprofUI, browser)
				if err := src.emit(ctx, a.logger, s, *conf); err != nil {
					return err
				}
				return s.Serve(ctx)

			default:
				s := sink.NewDirSink(a.logger, output, conf.SinkOptions())
				return src.emit(ctx, a.logger, s, *conf)
			}
		},
	}

	flags = addReportFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory to write the report to")
	cmd.Flags().StringVar(&serve, "serve", "", "Serve the report over http on this address instead of writing it")
	cmd.Flags().StringVar(&pprofUI, "pprof-ui", "", "Open the merged call tree in the pprof web UI on this address")
	cmd.Flags().BoolVar(&browser, "browser", false, "Open the served report in a browser")
	cmd.Flags().Var(input, "input-format", "Format of the input, one of "+input.Variants())
	mustNot(cmd.RegisterFlagCompletionFunc("input-format", input.Complete))
	mustNot(cmd.MarkFlagDirname("output"))

	return cmd
}
