package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vigil/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			out := cmd.OutOrStdout()

			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only show lines for this sweep run ID (JSON logs)")
	cmd.Flags().StringVar(&filter.Identifier, "object", "", "Only show lines for this object identifier (JSON logs)")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Only show lines at this level (JSON logs)")
	return cmd
}
