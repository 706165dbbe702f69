package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
	"github.com/mpalmeida/spendsight/internal/pipeline"
)

const (
	categoryWidth = 24
	amountWidth   = 14
)

// writeReport prints the session report as plain text for the terminal. The
// projections, series and detail tables in pipeline.Report are what a chart
// frontend would consume instead.
func writeReport(w io.Writer, report *pipeline.Report, queue []categorize.Item) error {
	fmt.Fprintf(w, "\n%s — %d of %d rows parsed\n", report.SourceFile, report.ParsedRows, report.TotalRows)
	if len(report.RowErrors) > 0 {
		fmt.Fprintf(w, "%d row(s) skipped:\n", len(report.RowErrors))
		for _, re := range report.RowErrors {
			fmt.Fprintf(w, "  line %d: %s\n", re.Line, re.Reason)
		}
	}
	if len(report.Dropped) > 0 {
		fmt.Fprintf(w, "%d transaction(s) filtered out (transfers, fees)\n", len(report.Dropped))
	}

	s := report.Summary
	fmt.Fprintf(w, "\nSpend %.2f   Income %.2f   Net %+.2f\n",
		float64(s.TotalSpendCents)/100, float64(s.TotalIncomeCents)/100, float64(s.NetCents)/100)
	for _, h := range s.Highlights {
		fmt.Fprintf(w, "  %s\n", h)
	}

	fmt.Fprintf(w, "\nAnnual projection (%.1f month basis):\n\n", report.Projections.PeriodMonths)
	fmt.Fprintln(w, separator())
	fmt.Fprintln(w, row("Category", "Monthly", "Annual"))
	fmt.Fprintln(w, separator())
	for _, p := range report.Projections.Projections {
		fmt.Fprintln(w, row(
			p.Category,
			fmt.Sprintf("%.2f", float64(p.MonthlyAverageCents)/100),
			fmt.Sprintf("%.2f", float64(p.ProjectedAnnualCents)/100),
		))
	}
	fmt.Fprintln(w, separator())

	if len(queue) > 0 {
		fmt.Fprintf(w, "\n%d item(s) need confirmation:\n", len(queue))
		for _, item := range queue {
			label := "uncategorized"
			if item.Category != "" {
				label = fmt.Sprintf("%s (%.0f%% confidence)", item.Category, item.Confidence*100)
			}
			fmt.Fprintf(w, "  %s  %s  %.2f  %s\n",
				item.Transaction.Date.Format("2006-01-02"),
				item.Transaction.Merchant,
				float64(item.Transaction.AmountCents)/100,
				label)
		}
	}
	return nil
}

func row(category, monthly, annual string) string {
	return fmt.Sprintf("| %-*s | %*s | %*s |", categoryWidth, category, amountWidth, monthly, amountWidth, annual)
}

func separator() string {
	return fmt.Sprintf("+%s+%s+%s+",
		strings.Repeat("-", categoryWidth+2),
		strings.Repeat("-", amountWidth+2),
		strings.Repeat("-", amountWidth+2))
}
