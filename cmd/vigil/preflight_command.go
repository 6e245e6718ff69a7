package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vigil/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, content store, catalog, and ledger readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}
			if len(preflight.Failed(results)) > 0 {
				return errPreflightFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
