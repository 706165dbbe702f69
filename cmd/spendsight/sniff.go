package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpalmeida/spendsight/internal/domain/ingest/sniffer"
)

// newSniffCmd inspects a statement file's layout without running the
// pipeline, useful when a bank export is not being parsed as expected.
func newSniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <statement-file>",
		Short: "Detect a statement file's delimiter, columns and dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			shape, err := sniffer.Detect(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:        %s\n", args[0])
			fmt.Fprintf(out, "Delimiter:   %q\n", shape.Delimiter)
			fmt.Fprintf(out, "Header row:  %d\n", shape.HeaderRow+1)
			fmt.Fprintf(out, "Headers:     %s\n", strings.Join(shape.Headers, ", "))
			fmt.Fprintf(out, "Fingerprint: %s\n", shape.Fingerprint)

			cols := shape.Columns
			fmt.Fprintf(out, "Columns:     date=%s description=%s amount=%s debit=%s credit=%s\n",
				colName(shape.Headers, cols.Date),
				colName(shape.Headers, cols.Description),
				colName(shape.Headers, cols.Amount),
				colName(shape.Headers, cols.Debit),
				colName(shape.Headers, cols.Credit))

			d := shape.Dialect
			fmt.Fprintf(out, "Dialect:     european-amounts=%t day-first-dates=%t currency=%s (confidence %.2f)\n",
				d.EuropeanAmounts, d.DayFirstDates, valueOr(d.CurrencyHint, "?"), d.Confidence)

			if cols.NeedsConfirmation {
				fmt.Fprintln(out, "\nColumn mapping is ambiguous:")
				for _, a := range cols.Ambiguities {
					fmt.Fprintf(out, "  - %s\n", a)
				}
			}
			return nil
		},
	}
}

func colName(headers []string, idx int) string {
	if idx < 0 || idx >= len(headers) {
		return "-"
	}
	return headers[idx]
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
