package filter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

func tx(desc string, kind normalize.Kind, cents int64) normalize.Transaction {
	return normalize.Transaction{
		ID:             uuid.New(),
		Date:           time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		RawDescription: desc,
		Merchant:       desc,
		AmountCents:    cents,
		Kind:           kind,
	}
}

var cfg = Config{WithdrawalReviewThresholdCents: 10000}

func TestDispositions(t *testing.T) {
	t.Run("transfer dropped", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("TFR TO SAVINGS", normalize.KindTransfer, -50000)}, cfg)
		require.Len(t, res.Dropped, 1)
		assert.Equal(t, ReasonTransfer, res.Dropped[0].Reason)
	})

	t.Run("fee dropped", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ACCOUNT SERVICE FEE", normalize.KindFee, -500)}, cfg)
		require.Len(t, res.Dropped, 1)
		assert.Equal(t, ReasonFee, res.Dropped[0].Reason)
	})

	t.Run("interest fee kept", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("INTEREST CHARGE", normalize.KindFee, -1200)}, cfg)
		assert.Len(t, res.Kept, 1)
		assert.Empty(t, res.Dropped)
	})

	t.Run("investment transfer dropped", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("VANGUARD BUY VTS", normalize.KindExpense, -100000)}, cfg)
		require.Len(t, res.Dropped, 1)
		assert.Equal(t, ReasonInvestmentTransfer, res.Dropped[0].Reason)
	})

	t.Run("150 withdrawal flagged above 100 threshold", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ATM WDL 447 GEORGE ST", normalize.KindExpense, -15000)}, cfg)
		require.Len(t, res.Flagged, 1)
		assert.Empty(t, res.Kept)
		assert.Contains(t, res.Flagged[0].Reason, "review")
	})

	t.Run("small withdrawal kept", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ATM WDL 447 GEORGE ST", normalize.KindExpense, -5000)}, cfg)
		assert.Len(t, res.Kept, 1)
		assert.Empty(t, res.Flagged)
	})

	t.Run("withdrawal exactly at threshold kept", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ATM WDL", normalize.KindExpense, -10000)}, cfg)
		assert.Len(t, res.Kept, 1)
		assert.Empty(t, res.Flagged)
	})

	t.Run("withdrawal one cent over threshold flagged", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ATM WDL", normalize.KindExpense, -10001)}, cfg)
		assert.Len(t, res.Flagged, 1)
	})

	t.Run("flagging disabled when threshold zero", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("ATM WDL", normalize.KindExpense, -15000)}, Config{})
		assert.Len(t, res.Kept, 1)
	})

	t.Run("ordinary spend kept", func(t *testing.T) {
		res := Apply([]normalize.Transaction{tx("WOOLWORTHS 1234", normalize.KindExpense, -4732)}, cfg)
		assert.Len(t, res.Kept, 1)
	})
}

func TestCompleteness(t *testing.T) {
	input := []normalize.Transaction{
		tx("WOOLWORTHS 1234", normalize.KindExpense, -4732),
		tx("TFR TO SAVINGS", normalize.KindTransfer, -50000),
		tx("ACCOUNT SERVICE FEE", normalize.KindFee, -500),
		tx("INTEREST CHARGE", normalize.KindFee, -1200),
		tx("ATM WDL 447 GEORGE ST", normalize.KindExpense, -15000),
		tx("VANGUARD BUY", normalize.KindExpense, -100000),
		tx("CARD VERIFICATION", normalize.KindIgnore, 0),
		tx("DIRECT CREDIT SALARY", normalize.KindIncome, 500000),
	}

	res := Apply(input, cfg)

	total := len(res.Kept) + len(res.Flagged) + len(res.Dropped)
	assert.Equal(t, len(input), total, "every input lands in exactly one bucket")

	seen := map[uuid.UUID]int{}
	for _, k := range res.Kept {
		seen[k.ID]++
	}
	for _, f := range res.Flagged {
		seen[f.Transaction.ID]++
	}
	for _, d := range res.Dropped {
		seen[d.Transaction.ID]++
	}
	for _, in := range input {
		assert.Equal(t, 1, seen[in.ID], "transaction %s appears exactly once", in.RawDescription)
	}
}

func TestOrderPreservedWithinBuckets(t *testing.T) {
	input := []normalize.Transaction{
		tx("FIRST KEEP", normalize.KindExpense, -100),
		tx("TFR AWAY", normalize.KindTransfer, -200),
		tx("SECOND KEEP", normalize.KindExpense, -300),
	}

	res := Apply(input, cfg)
	require.Len(t, res.Kept, 2)
	assert.Equal(t, "FIRST KEEP", res.Kept[0].RawDescription)
	assert.Equal(t, "SECOND KEEP", res.Kept[1].RawDescription)
}
