package group

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

func tx(merchant string, cents int64) normalize.Transaction {
	return normalize.Transaction{
		ID:          uuid.New(),
		Date:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Merchant:    merchant,
		AmountCents: cents,
		Kind:        normalize.KindExpense,
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		name     string
		absCents int64
		wantLo   int64
		wantHi   int64
	}{
		{"small spend in 10-unit bands", 4732, 4000, 5000},
		{"boundary lands in lower band", 5000, 4000, 5000},
		{"just past boundary", 5001, 5000, 6000},
		{"mid range in 50-unit bands", 23050, 20000, 25000},
		{"large in 100-unit bands", 151000, 150000, 160000},
		{"very large in 500-unit bands", 987600, 950000, 1000000},
		{"tiny amount", 1, 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bandFor(tt.absCents)
			assert.Equal(t, tt.wantLo, b.LoCents)
			assert.Equal(t, tt.wantHi, b.HiCents)
			assert.True(t, b.Contains(tt.absCents))
		})
	}
}

func TestPartition(t *testing.T) {
	t.Run("splits by merchant and band", func(t *testing.T) {
		input := []normalize.Transaction{
			tx("Woolworths", -4732),
			tx("Woolworths", -4810), // same band (40,50]
			tx("Woolworths", -15500),
			tx("Netflix", -1599),
		}

		groups := Partition(input)
		require.Len(t, groups, 3)

		assert.Equal(t, "Netflix", groups[0].Merchant)
		assert.Equal(t, "Woolworths", groups[1].Merchant)
		assert.Len(t, groups[1].Transactions, 2)
		assert.Equal(t, "Woolworths", groups[2].Merchant)
		assert.Len(t, groups[2].Transactions, 1)
	})

	t.Run("partition invariant", func(t *testing.T) {
		input := []normalize.Transaction{
			tx("Woolworths", -4732),
			tx("Netflix", -1599),
			tx("Uber", -2300),
			tx("Uber", -2250),
			tx("Corner Bakery", -850),
		}

		groups := Partition(input)

		seen := map[uuid.UUID]int{}
		for _, g := range groups {
			require.NotEmpty(t, g.Transactions, "groups are never empty")
			for _, tr := range g.Transactions {
				seen[tr.ID]++
				assert.True(t, g.Band.Contains(absCents(tr.AmountCents)),
					"transaction amount fits its group band")
			}
		}
		for _, in := range input {
			assert.Equal(t, 1, seen[in.ID], "every transaction in exactly one group")
		}
	})

	t.Run("near-identical merchants consolidate", func(t *testing.T) {
		input := []normalize.Transaction{
			tx("Starbucks 001", -550),
			tx("Starbucks 002", -560),
		}

		groups := Partition(input)
		require.Len(t, groups, 1)
		assert.Equal(t, "Starbucks 001", groups[0].Merchant, "first-seen spelling is canonical")
		assert.Len(t, groups[0].Transactions, 2)
	})

	t.Run("short names never consolidate", func(t *testing.T) {
		input := []normalize.Transaction{
			tx("Uber", -2300),
			tx("Uber Eats", -2250),
		}

		groups := Partition(input)
		assert.Len(t, groups, 2)
	})

	t.Run("empty input yields no groups", func(t *testing.T) {
		assert.Empty(t, Partition(nil))
	})
}
