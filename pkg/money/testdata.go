package money

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// TestDataGenerator produces realistic bank-statement style test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a fixed seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// StatementRow is a generated raw bank-export line, before any normalization.
type StatementRow struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Amount      *Money
}

// merchantSlugs mimic the mangled descriptors banks actually emit.
var merchantSlugs = []string{
	"WOOLWORTHS 1234 SYDNEY",
	"WOOLWORTHS/SYD NSW",
	"COLES 0412 MELBOURNE",
	"AMAZON MKTPLACE*2K4F7",
	"AMZN Mktp AU",
	"NETFLIX.COM",
	"SPOTIFY P21E4FA1B2",
	"UBER *TRIP HELP.UBER.COM",
	"UBER EATS SYDNEY",
	"SHELL COLES EXP 7721",
	"BP CONNECT PARRAMATTA",
	"MCDONALDS F137 AU",
	"PAYPAL *STEAMGAMES",
	"SQ *BLUE BOTTLE COFFEE",
	"TFR TO SAVINGS ACCT",
	"ATM WDL 447 GEORGE ST",
	"INTL TXN FEE",
	"DIRECT CREDIT SALARY ACME PTY",
}

// Row generates a single raw statement line with a plausible bank descriptor.
func (g *TestDataGenerator) Row(currency string) StatementRow {
	amount := g.RandomAmount(currency, 1, 50000)
	if g.faker.Float32() < 0.85 {
		amount = amount.Negate() // most statement lines are debits
	}

	return StatementRow{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Description: g.Descriptor(),
		Amount:      amount,
	}
}

// Rows generates count raw statement lines.
func (g *TestDataGenerator) Rows(currency string, count int) []StatementRow {
	rows := make([]StatementRow, count)
	for i := range rows {
		rows[i] = g.Row(currency)
	}
	return rows
}

// Descriptor returns a raw merchant descriptor as it would appear on a statement.
func (g *TestDataGenerator) Descriptor() string {
	return merchantSlugs[g.faker.Number(0, len(merchantSlugs)-1)]
}

// RandomAmount returns a Money value between minCents and maxCents inclusive.
func (g *TestDataGenerator) RandomAmount(currency string, minCents, maxCents int64) *Money {
	cents := g.faker.Number(int(minCents), int(maxCents))
	return New(int64(cents), currency)
}

// SmallPurchase returns an amount in the coffee-and-snacks range.
func (g *TestDataGenerator) SmallPurchase(currency string) *Money {
	return g.RandomAmount(currency, 100, 2500)
}

// LargePurchase returns an amount big enough to warrant withdrawal review.
func (g *TestDataGenerator) LargePurchase(currency string) *Money {
	return g.RandomAmount(currency, 10001, 200000)
}

// Salary returns a plausible monthly salary credit.
func (g *TestDataGenerator) Salary(currency string) *Money {
	return g.RandomAmount(currency, 300000, 900000)
}

// CSVLine renders a row as "date,description,amount" with a dotted decimal.
func (r StatementRow) CSVLine() string {
	return fmt.Sprintf("%s,%s,%s",
		r.Date.Format("2006-01-02"),
		r.Description,
		r.Amount.ToDecimal().StringFixed(2))
}
