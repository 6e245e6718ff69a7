package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vigil/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, sweep and ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	section := func(title string, lines []statusLine) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, line := range lines {
			fmt.Fprintln(stdout, renderStatusLine(line.label, line.kind, line.message, colorize))
		}
		fmt.Fprintln(stdout)
	}

	daemonKind := statusOK
	if !status.Running {
		daemonKind = statusWarn
	}
	section("Daemon", []statusLine{
		{"Running", daemonKind, fmt.Sprintf("%s (pid %d)", yesNo(status.Running), status.PID)},
		{"Ledger", statusInfo, status.LedgerPath},
		{"Lock file", statusInfo, status.LockFilePath},
	})

	sweepSection := sweepLines(status.Sweep)
	if line, ok := nextRunLine(status.NextRuns); ok {
		sweepSection = append(sweepSection, line)
	}
	section("Sweep", sweepSection)
	section("Ledger", ledgerLines(status.Ledger))
}

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List the verification records of the current sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Ledger(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintln(stdout, "No sweep in progress")
					return nil
				}
				s := resp.Summary
				fmt.Fprintln(stdout, tableSpec{
					Headers: []string{"Seq", "Identifier", "Added", "Verified", "Result"},
					Rows:    ledgerRows(resp.Records),
					Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					Footer: fmt.Sprintf("%d records: %d verified, %d corrupted, %d pending",
						s.Total, s.Verified, s.Corrupted, s.Pending),
				}.render())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	cmd.AddCommand(newLedgerResetCommand(ctx))
	return cmd
}

func newLedgerResetCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Abandon the current sweep so the next one starts from the first object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("ledger reset discards sweep progress; rerun with --yes to confirm")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ResetLedger(cmd.Context())
				if err != nil {
					return err
				}
				printAction(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm discarding sweep progress")
	return cmd
}

func ledgerRows(records []api.LedgerRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		result := "pending"
		if record.Correct != nil {
			result = "ok"
			if !*record.Correct {
				result = "CORRUPTED"
			}
		}
		verified := "-"
		if record.VerifiedOn != "" {
			verified = relativeTime(record.VerifiedOn)
		}
		rows = append(rows, []string{
			strconv.FormatInt(record.Seq, 10),
			record.Identifier,
			relativeTime(record.AddedOn),
			verified,
			result,
		})
	}
	return rows
}
