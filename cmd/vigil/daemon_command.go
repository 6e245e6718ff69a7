package main

import (
	"github.com/spf13/cobra"

	"vigil/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the vigil daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
