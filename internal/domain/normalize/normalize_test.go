package normalize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpalmeida/spendsight/internal/domain/ingest/parser"
)

func rawRecord(desc string, cents int64) parser.RawRecord {
	return parser.RawRecord{
		ID:          uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: desc,
		AmountCents: cents,
		SourceFile:  "statement.csv",
		Line:        2,
	}
}

func TestMerchantName(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name string
		desc string
		want string
	}{
		{"store number and city", "WOOLWORTHS 1234 SYDNEY", "Woolworths"},
		{"slash city variant", "WOOLWORTHS/SYD NSW", "Woolworths"},
		{"amazon reference blob", "AMAZON MKTPLACE*2K4F7", "Amazon"},
		{"amazon short code", "AMZN Mktp AU", "Amazon"},
		{"uber eats beats uber", "UBER EATS SYDNEY", "Uber Eats"},
		{"square prefix stripped", "SQ *BLUE BOTTLE COFFEE", "Blue Bottle Coffee"},
		{"unknown merchant title-cased", "CORNER BAKERY 889", "Corner Bakery"},
		{"pos prefix stripped", "POS LOCAL BUTCHER 4410", "Local Butcher"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Normalize(rawRecord(tt.desc, -1500), rules)
			assert.Equal(t, tt.want, tx.Merchant)
			assert.Equal(t, tt.desc, tx.RawDescription, "raw text is preserved")
		})
	}
}

func TestClassifyKind(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		desc  string
		cents int64
		want  Kind
	}{
		{"grocery spend", "WOOLWORTHS 1234 SYDNEY", -4732, KindExpense},
		{"transfer out", "TFR TO SAVINGS ACCT", -50000, KindTransfer},
		{"transfer in still transfer", "TRANSFER FROM SAVINGS", 50000, KindTransfer},
		{"account fee", "ACCOUNT SERVICE FEE", -500, KindFee},
		{"interest is a fee kind", "INTEREST CHARGE", -1200, KindFee},
		{"salary credit", "DIRECT CREDIT SALARY ACME PTY", 500000, KindIncome},
		{"unlabelled credit", "SOMEONE PAID ME", 2500, KindIncome},
		{"zero amount ignored", "CARD VERIFICATION", 0, KindIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Normalize(rawRecord(tt.desc, tt.cents), rules)
			assert.Equal(t, tt.want, tx.Kind, "kind for %q", tt.desc)
		})
	}
}

func TestForeignDetection(t *testing.T) {
	rules := DefaultRules()

	t.Run("conversion marker on the line itself", func(t *testing.T) {
		tx := Normalize(rawRecord("HOTEL LISBOA INTERNATIONAL TXN", -21000), rules)
		assert.True(t, tx.Foreign)
	})

	t.Run("adjacent conversion fee marks the previous line", func(t *testing.T) {
		records := []parser.RawRecord{
			rawRecord("WOOLWORTHS 1234", -4732),
			rawRecord("HOTEL LISBOA", -21000),
			rawRecord("INTL CONVERSION FEE", -630),
		}

		txs := NormalizeAll(records, rules)
		require.Len(t, txs, 3)
		assert.False(t, txs[0].Foreign)
		assert.True(t, txs[1].Foreign, "line before the conversion fee is foreign spend")
	})
}

func TestNormalizeDeterminism(t *testing.T) {
	rules := DefaultRules()
	rec := rawRecord("SPOTIFY P21E4FA1B2", -1199)

	a := Normalize(rec, rules)
	b := Normalize(rec, rules)
	assert.Equal(t, a, b)
	assert.Equal(t, "Spotify", a.Merchant)
}

func TestAddMerchantRule(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, rules.AddMerchantRule(`LOCAL VET\b`, "Happy Paws Vet"))

	tx := Normalize(rawRecord("LOCAL VET 8812", -9800), rules)
	assert.Equal(t, "Happy Paws Vet", tx.Merchant)

	t.Run("invalid pattern rejected", func(t *testing.T) {
		assert.Error(t, rules.AddMerchantRule(`([`, "Broken"))
	})
}
