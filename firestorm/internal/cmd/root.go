package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yandex/firestorm/firestorm/internal/buildinfo/cobrabuildinfo"
	"github.com/yandex/firestorm/firestorm/internal/cli"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
	"github.com/yandex/firestorm/firestorm/pkg/xpflag"
)

////////////////////////////////////////////////////////////////////////////////

// app is the state shared by all subcommands.
type app struct {
	logLevel   *xpflag.OneOf
	configPath string

	logger xlog.Logger
}

func (a *app) config() (*report.Config, error) {
	if a.configPath == "" {
		return &report.Config{}, nil
	}
	return report.ParseConfig(a.configPath, false /* strict */)
}

////////////////////////////////////////////////////////////////////////////////

func NewRootCmd() *cobra.Command {
	a := &app{
		logLevel: xpflag.NewOneOf("info", cli.LogLevels...),
		logger:   xlog.NewNop(),
	}

	rootCmd := &cobra.Command{
		Use:           "firestorm",
		Short:         "Render call tree profiles recorded with firestorm",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cli.NewLogger(a.logLevel.String())
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// Syncing stderr fails on some terminals, nothing to do about it.
			_ = a.logger.Zap().Sync()
		},
	}

	rootCmd.PersistentFlags().Var(a.logLevel, "log-level", "Log level, one of "+a.logLevel.Variants())
	mustNot(rootCmd.RegisterFlagCompletionFunc("log-level", a.logLevel.Complete))
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the report config")
	mustNot(rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml"))

	rootCmd.AddCommand(
		newRenderCmd(a),
		newMergeCmd(a),
		newCollapseCmd(a),
		newDemoCmd(a),
		newValidateConfigCmd(a),
	)
	cobrabuildinfo.Init(rootCmd)

	return rootCmd
}

func mustNot(err error) {
	if err != nil {
		panic(err)
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		stop()
		os.Exit(1)
	}
}
