package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vigil/internal/catalog"
	"vigil/internal/integrity"
)

// errObjectCorrupted makes `vigil check` exit non-zero on a corrupted verdict.
var errObjectCorrupted = errors.New("object is corrupted")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <identifier> <archive.zip>",
		Short: "Check a local archive against the catalog without the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			identifier, archivePath := args[0], args[1]
			info, err := os.Stat(archivePath)
			if err != nil {
				return fmt.Errorf("stat archive: %w", err)
			}

			cat, err := catalog.Open(cmd.Context(), cfg.Catalog)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer cat.Close()

			report, err := integrity.NewChecker(cat, nil).Check(cmd.Context(), identifier, archivePath)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					reportRows(report, info.Size()),
					[]columnAlignment{alignLeft, alignLeft},
				))
			}
			if report.Corrupted {
				return errObjectCorrupted
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func reportRows(report integrity.Report, size int64) [][]string {
	verdict := "ok"
	if report.Corrupted {
		verdict = "CORRUPTED"
	}
	rows := [][]string{
		{"Identifier", report.Identifier},
		{"Archive size", humanize.IBytes(uint64(size))},
		{"Files checked", strconv.Itoa(report.Checked)},
		{"Verdict", verdict},
	}
	if report.Corrupted {
		rows = append(rows,
			[]string{"Reason", string(report.Reason)},
			[]string{"File", report.Path},
		)
		if report.Reason == integrity.ReasonMismatch {
			rows = append(rows,
				[]string{"Algorithm", report.Algorithm},
				[]string{"Expected", report.Expected},
				[]string{"Actual", report.Actual},
			)
		}
	}
	return rows
}
