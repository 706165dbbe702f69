package money

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// allocationEpsilon is the tolerance when checking that percentages sum to 100.
var allocationEpsilon = decimal.NewFromFloat(0.01)

// Percentage is a validated share of a whole, constrained to [0, 100].
type Percentage struct {
	value decimal.Decimal
}

// NewPercentage validates and wraps a percentage value.
func NewPercentage(value float64) (Percentage, error) {
	d := decimal.NewFromFloat(value)
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return Percentage{}, &ValidationError{
			Field:   "percentage",
			Message: fmt.Sprintf("must be in [0, 100], got %s", d),
		}
	}
	return Percentage{value: d}, nil
}

// MustPercentage wraps a percentage value, panicking on invalid input.
// Intended for constants and tests.
func MustPercentage(value float64) Percentage {
	p, err := NewPercentage(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal returns the underlying decimal value.
func (p Percentage) Decimal() decimal.Decimal { return p.value }

// Float64 returns the percentage as a float64, for display only.
func (p Percentage) Float64() float64 { return p.value.InexactFloat64() }

// Of applies the percentage to a Money value.
func (p Percentage) Of(m *Money) *Money {
	if m == nil {
		return Zero(USD)
	}
	result := m.ToDecimal().Mul(p.value).Div(decimal.NewFromInt(100))
	return NewFromDecimal(result, m.Currency())
}

func (p Percentage) String() string { return p.value.String() + "%" }

// Share is a single (category, percentage) slice of an allocation.
type Share struct {
	Category string
	Percent  Percentage
}

// AllocationSet is a validated set of category shares guaranteed to sum to
// 100% within allocationEpsilon. Construct only through NewAllocationSet so
// the invariant is structurally checked.
type AllocationSet struct {
	shares []Share
}

// ValidationError reports an allocation or percentage constraint violation,
// including the specific mismatch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewAllocationSet validates that the shares sum to 100% and that no category
// repeats. Shares are kept in the caller's order.
func NewAllocationSet(shares []Share) (*AllocationSet, error) {
	if len(shares) == 0 {
		return nil, &ValidationError{Field: "shares", Message: "at least one share required"}
	}

	seen := make(map[string]bool, len(shares))
	total := decimal.Zero
	for _, s := range shares {
		if s.Category == "" {
			return nil, &ValidationError{Field: "shares", Message: "share with empty category"}
		}
		if seen[s.Category] {
			return nil, &ValidationError{
				Field:   "shares",
				Message: fmt.Sprintf("duplicate category %q", s.Category),
			}
		}
		seen[s.Category] = true
		total = total.Add(s.Percent.Decimal())
	}

	diff := total.Sub(decimal.NewFromInt(100)).Abs()
	if diff.GreaterThan(allocationEpsilon) {
		return nil, &ValidationError{
			Field:   "shares",
			Message: fmt.Sprintf("percentages sum to %s, off by %s", total, diff),
		}
	}

	copied := make([]Share, len(shares))
	copy(copied, shares)
	return &AllocationSet{shares: copied}, nil
}

// Shares returns a copy of the share list.
func (a *AllocationSet) Shares() []Share {
	out := make([]Share, len(a.shares))
	copy(out, a.shares)
	return out
}

// Categories returns the category names in share order.
func (a *AllocationSet) Categories() []string {
	out := make([]string, len(a.shares))
	for i, s := range a.shares {
		out[i] = s.Category
	}
	return out
}

// Apply distributes a Money value across the shares. The go-money allocator
// assigns remainder cents to the earliest shares, so the parts always sum back
// to the original amount.
func (a *AllocationSet) Apply(m *Money) (map[string]*Money, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot allocate nil money")
	}

	// go-money allocates by integer ratios; scale percentages to basis points
	// to keep two decimal places of precision.
	ratios := make([]int, len(a.shares))
	for i, s := range a.shares {
		ratios[i] = int(s.Percent.Decimal().Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}

	parts, err := m.Allocate(ratios)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Money, len(a.shares))
	for i, s := range a.shares {
		out[s.Category] = parts[i]
	}
	return out, nil
}

// ApplyCents distributes an integer cent amount across the shares, preserving
// the total exactly.
func (a *AllocationSet) ApplyCents(amountCents int64, currency string) (map[string]int64, error) {
	parts, err := a.Apply(New(amountCents, currency))
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(parts))
	for category, part := range parts {
		out[category] = part.Amount()
	}
	return out, nil
}

func (a *AllocationSet) String() string {
	shares := a.Shares()
	sort.Slice(shares, func(i, j int) bool { return shares[i].Category < shares[j].Category })
	s := ""
	for i, share := range shares {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%s", share.Category, share.Percent)
	}
	return s
}
