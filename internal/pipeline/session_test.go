package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
	"github.com/mpalmeida/spendsight/internal/domain/filter"
)

const statement = `date,description,amount
2026-01-15,WOOLWORTHS METRO 123,-47.32
2026-01-16,TRANSFER TO SAVINGS,-500.00
2026-01-17,NETFLIX.COM,-15.99
2026-01-18,ATM WDL 447 GEORGE ST,-150.00
2026-01-19,SALARY ACME CORP,5200.00
2026-01-20,OBSCURE BISTRO 771,-56.00
`

func testOptions() Options {
	return Options{
		Filter:       filter.Config{WithdrawalReviewThresholdCents: 10000},
		PeriodMonths: 1,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(12)})),
	}
}

func TestSessionFullCycle(t *testing.T) {
	classifier := categorize.ClassifierFunc(func(ctx context.Context, b categorize.Batch) ([]categorize.ClassificationResult, error) {
		results := make([]categorize.ClassificationResult, len(b.Items))
		for i, item := range b.Items {
			results[i] = categorize.ClassificationResult{ID: item.ID, Category: "Dining", Confidence: 0.9}
		}
		return results, nil
	})

	opts := testOptions()
	opts.Classifier = classifier
	s, err := NewSession(opts)
	require.NoError(t, err)
	defer s.Close()

	flagged, err := s.Ingest(strings.NewReader(statement), "statement.csv")
	require.NoError(t, err)
	require.Len(t, flagged, 1, "the large withdrawal needs a decision")
	assert.Equal(t, PhaseAwaitingReview, s.Phase())
	assert.Contains(t, flagged[0].Transaction.RawDescription, "ATM WDL")

	// Finishing before the gate is resolved must refuse.
	_, err = s.Finish(context.Background())
	require.ErrorIs(t, err, ErrAwaitingReview)

	// Keep the withdrawal.
	require.NoError(t, s.ApplyReviewDecisions(map[uuid.UUID]bool{
		flagged[0].Transaction.ID: true,
	}))

	report, err := s.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, s.Phase())

	assert.Equal(t, 6, report.ParsedRows)
	assert.Equal(t, "statement.csv", report.SourceFile)

	// The transfer was dropped, everything else kept: 5 transactions.
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, filter.ReasonTransfer, report.Dropped[0].Reason)
	assert.Len(t, report.Items, 5)

	byMerchant := make(map[string]categorize.Item)
	for _, item := range report.Items {
		byMerchant[item.Transaction.Merchant] = item
	}

	woolies := byMerchant["Woolworths"]
	assert.Equal(t, categorize.StatusLocallyMatched, woolies.Status)
	assert.Equal(t, "Groceries", woolies.Category)

	bistro := byMerchant["Obscure Bistro"]
	assert.Equal(t, categorize.StatusExternallyMatched, bistro.Status)
	assert.Equal(t, "Dining", bistro.Category)

	assert.NotEmpty(t, report.Projections.Projections)
	assert.NotNil(t, report.Summary)
	assert.Positive(t, report.Summary.TotalSpendCents)
}

func TestSessionDropFlagged(t *testing.T) {
	s, err := NewSession(testOptions())
	require.NoError(t, err)
	defer s.Close()

	flagged, err := s.Ingest(strings.NewReader(statement), "statement.csv")
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	// No decision recorded for the withdrawal: it stays out.
	require.NoError(t, s.ApplyReviewDecisions(nil))

	report, err := s.Finish(context.Background())
	require.NoError(t, err)
	for _, item := range report.Items {
		assert.NotContains(t, item.Transaction.RawDescription, "ATM WDL")
	}

	// The declined withdrawal is accounted for in the dropped set, not
	// silently discarded.
	var declined []filter.Dropped
	for _, d := range report.Dropped {
		if d.Reason == filter.ReasonReviewDeclined {
			declined = append(declined, d)
		}
	}
	require.Len(t, declined, 1)
	assert.Contains(t, declined[0].Transaction.RawDescription, "ATM WDL")
}

func TestSessionGateValidation(t *testing.T) {
	s, err := NewSession(testOptions())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Ingest(strings.NewReader(statement), "statement.csv")
	require.NoError(t, err)

	err = s.ApplyReviewDecisions(map[uuid.UUID]bool{uuid.New(): true})
	require.ErrorIs(t, err, ErrUnknownFlagged)

	_, err = s.Ingest(strings.NewReader(statement), "statement.csv")
	require.ErrorIs(t, err, ErrAlreadyIngested)
}

func TestSessionNoGateWhenThresholdDisabled(t *testing.T) {
	opts := testOptions()
	opts.Filter = filter.Config{}
	s, err := NewSession(opts)
	require.NoError(t, err)
	defer s.Close()

	flagged, err := s.Ingest(strings.NewReader(statement), "statement.csv")
	require.NoError(t, err)
	assert.Empty(t, flagged)
	assert.Equal(t, PhaseReadyToFinish, s.Phase())
}

func TestSessionCorrect(t *testing.T) {
	s, err := NewSession(testOptions())
	require.NoError(t, err)
	defer s.Close()

	flagged, err := s.Ingest(strings.NewReader(statement), "statement.csv")
	require.NoError(t, err)
	require.NoError(t, s.ApplyReviewDecisions(map[uuid.UUID]bool{
		flagged[0].Transaction.ID: true,
	}))
	report, err := s.Finish(context.Background())
	require.NoError(t, err)

	// With no classifier the bistro stays uncategorized and lands in the
	// review queue.
	var bistro categorize.Item
	for _, item := range report.Items {
		if item.Transaction.Merchant == "Obscure Bistro" {
			bistro = item
		}
	}
	require.Equal(t, categorize.StatusStillUncategorized, bistro.Status)
	queue := s.ReviewQueue()
	require.NotEmpty(t, queue)

	_, err = s.Correct(bistro.Transaction.ID, "Dining")
	require.NoError(t, err)

	refreshed := s.Report()
	for _, item := range refreshed.Items {
		if item.Transaction.ID == bistro.Transaction.ID {
			assert.Equal(t, categorize.StatusUserReviewed, item.Status)
			assert.Equal(t, "Dining", item.Category)
			assert.Equal(t, categorize.SourceUserOverride, item.Source)
			assert.Equal(t, 1.0, item.Confidence)
		}
	}

	// Correcting an unknown item fails.
	_, err = s.Correct(uuid.New(), "Dining")
	require.Error(t, err)
}
