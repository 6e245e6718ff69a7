package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var apiFlag string

	ctx := newCommandContext(&configFlag, &apiFlag)

	rootCmd := &cobra.Command{
		Use:           "vigil",
		Short:         "Continuous integrity verification for archived objects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Control API address (defaults to paths.api_bind)")

	rootCmd.AddCommand(newDaemonRunCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLedgerCommand(ctx))
	for _, cmd := range newSweepCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newNotifyCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newPreflightCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
