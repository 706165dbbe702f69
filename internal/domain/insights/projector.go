// Package insights aggregates categorized transactions into per-category
// totals and scales partial-period data to an annual projection, producing
// the structures the visualization layer consumes.
package insights

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
)

// Uncategorized is the bucket for items that finished the pipeline without
// a category assignment.
const Uncategorized = "Uncategorized"

const uncategorizedColor = "#9E9E9E"

// ConfigurationError reports an invalid projection parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("insights configuration: %s %s", e.Field, e.Reason)
}

// AnnualProjection is one category's totals scaled to a full year.
type AnnualProjection struct {
	Category             string
	Color                string
	TotalCents           int64
	MonthlyAverageCents  int64
	ProjectedAnnualCents int64
	BasisMonths          float64
	TxCount              int
}

// DetailRow is one transaction line in a category's detail table. Split
// transactions appear in every category they were allocated to, with the
// allocated amount.
type DetailRow struct {
	Date        string
	Merchant    string
	Description string
	AmountCents int64
}

// Series is a chart-ready view of the projections: parallel labels, values
// and colors, values in descending projected-annual order.
type Series struct {
	Labels []string
	Values []int64
	Colors []string
}

// Report is the full aggregation output.
type Report struct {
	Projections  []AnnualProjection
	Series       Series
	Details      map[string][]DetailRow
	PeriodMonths float64
}

// AllocationLookup distributes a transaction's amount across categories per
// a user-registered percentage split. ok is false when the merchant has no
// split and the item's own category applies.
type AllocationLookup func(merchant string, amountCents int64, currency string) (splits map[string]int64, ok bool)

var monthsPerYear = decimal.NewFromInt(12)

// Project aggregates categorized items over periodMonths and extrapolates
// each category's total to a year. Expense amounts are negative on the
// wire; totals here are reported as positive spend.
func Project(items []categorize.Item, periodMonths float64, cats *categorize.Config, lookup AllocationLookup) (*Report, error) {
	if periodMonths <= 0 {
		return nil, &ConfigurationError{Field: "periodMonths", Reason: "must be > 0"}
	}

	totals := make(map[string]int64)
	counts := make(map[string]int)
	details := make(map[string][]DetailRow)

	add := func(category string, row DetailRow) {
		if category == "" {
			category = Uncategorized
		}
		totals[category] += row.AmountCents
		counts[category]++
		details[category] = append(details[category], row)
	}

	for _, item := range items {
		tx := item.Transaction
		row := DetailRow{
			Date:        tx.Date.Format("2006-01-02"),
			Merchant:    tx.Merchant,
			Description: tx.RawDescription,
			AmountCents: absCents(tx.AmountCents),
		}

		if lookup != nil {
			if splits, ok := lookup(tx.Merchant, tx.AmountCents, tx.Currency); ok {
				for category, cents := range splits {
					part := row
					part.AmountCents = absCents(cents)
					add(category, part)
				}
				continue
			}
		}
		add(item.Category, row)
	}

	period := decimal.NewFromFloat(periodMonths)
	projections := make([]AnnualProjection, 0, len(totals))
	for category, total := range totals {
		monthly := decimal.NewFromInt(total).Div(period)
		projections = append(projections, AnnualProjection{
			Category:             category,
			Color:                colorFor(cats, category),
			TotalCents:           total,
			MonthlyAverageCents:  monthly.Round(0).IntPart(),
			ProjectedAnnualCents: monthly.Mul(monthsPerYear).Round(0).IntPart(),
			BasisMonths:          periodMonths,
			TxCount:              counts[category],
		})
	}

	sort.Slice(projections, func(i, j int) bool {
		if projections[i].ProjectedAnnualCents != projections[j].ProjectedAnnualCents {
			return projections[i].ProjectedAnnualCents > projections[j].ProjectedAnnualCents
		}
		return projections[i].Category < projections[j].Category
	})

	series := Series{
		Labels: make([]string, len(projections)),
		Values: make([]int64, len(projections)),
		Colors: make([]string, len(projections)),
	}
	for i, p := range projections {
		series.Labels[i] = p.Category
		series.Values[i] = p.ProjectedAnnualCents
		series.Colors[i] = p.Color
	}

	for _, rows := range details {
		sortDetails(rows)
	}

	return &Report{
		Projections:  projections,
		Series:       series,
		Details:      details,
		PeriodMonths: periodMonths,
	}, nil
}

func sortDetails(rows []DetailRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Merchant < rows[j].Merchant
	})
}

func colorFor(cats *categorize.Config, name string) string {
	if name == Uncategorized || cats == nil {
		return uncategorizedColor
	}
	if cat, ok := cats.Lookup(name); ok && cat.Color != "" {
		return cat.Color
	}
	return uncategorizedColor
}

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
