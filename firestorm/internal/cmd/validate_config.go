package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yandex/firestorm/firestorm/pkg/report"
)

func newValidateConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the report config passed with --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.configPath == "" {
				return errors.New("--config is required")
			}
			config, err := report.ParseConfig(a.configPath, true /* strict */)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%#v\n", *config)
			return err
		},
	}
}
