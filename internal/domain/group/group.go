// Package group partitions kept transactions into recurring-spend buckets:
// first by consolidated merchant, then by amount band. Groups are non-empty
// and partition the input exactly.
package group

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

// Band is a half-open amount interval (Lo, Hi] in cents. An amount sitting
// exactly on a boundary belongs to the lower band.
type Band struct {
	LoCents int64
	HiCents int64
}

func (b Band) String() string {
	return fmt.Sprintf("%.0f-%.0f", float64(b.LoCents)/100, float64(b.HiCents)/100)
}

// Contains reports whether the absolute amount falls in (Lo, Hi].
func (b Band) Contains(absCents int64) bool {
	return absCents > b.LoCents && absCents <= b.HiCents
}

// Group is one merchant/amount-band bucket.
type Group struct {
	Merchant     string
	Band         Band
	Transactions []normalize.Transaction
}

// Key identifies a group within a session.
func (g Group) Key() string {
	return g.Merchant + "|" + g.Band.String()
}

// similarityThreshold: normalized Levenshtein distance below which two
// merchant names are treated as the same vendor.
const similarityThreshold = 3

// Partition groups transactions by consolidated merchant name, then by
// amount band. Input order is preserved inside each group; groups are
// returned sorted by merchant then band for stable output.
func Partition(txs []normalize.Transaction) []Group {
	canon := consolidateMerchants(txs)

	byKey := make(map[string]*Group)
	var order []string
	for _, tx := range txs {
		merchant := canon[tx.Merchant]
		band := bandFor(absCents(tx.AmountCents))
		key := merchant + "|" + band.String()

		g, ok := byKey[key]
		if !ok {
			g = &Group{Merchant: merchant, Band: band}
			byKey[key] = g
			order = append(order, key)
		}
		g.Transactions = append(g.Transactions, tx)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Merchant != groups[j].Merchant {
			return groups[i].Merchant < groups[j].Merchant
		}
		return groups[i].Band.LoCents < groups[j].Band.LoCents
	})
	return groups
}

// bandFor returns the half-open band holding absCents. Band widths grow
// with the amount: 10 units under 100, 50 under 500, 100 under 2000, 500
// beyond that, so small recurring spends separate finely while large
// one-offs bucket coarsely.
func bandFor(absCents int64) Band {
	width := bandWidth(absCents)

	// half-open (lo, hi]: an amount exactly on a multiple of the width
	// belongs to the band that ends there
	idx := (absCents + width - 1) / width
	if idx == 0 {
		idx = 1
	}
	return Band{LoCents: (idx - 1) * width, HiCents: idx * width}
}

func bandWidth(absCents int64) int64 {
	switch {
	case absCents <= 100_00:
		return 10_00
	case absCents <= 500_00:
		return 50_00
	case absCents <= 2000_00:
		return 100_00
	default:
		return 500_00
	}
}

// consolidateMerchants maps each merchant name to a canonical spelling so
// near-identical names ("Starbucks 001"/"Starbucks 002") share a bucket.
// The first-seen spelling of a cluster becomes canonical.
func consolidateMerchants(txs []normalize.Transaction) map[string]string {
	canon := make(map[string]string)
	var seen []string

	for _, tx := range txs {
		name := tx.Merchant
		if _, ok := canon[name]; ok {
			continue
		}

		matched := ""
		for _, existing := range seen {
			if sameVendor(name, existing) {
				matched = existing
				break
			}
		}
		if matched != "" {
			canon[name] = canon[matched]
		} else {
			canon[name] = name
			seen = append(seen, name)
		}
	}
	return canon
}

// sameVendor reports whether two merchant names likely refer to the same
// vendor: one prefixes the other, or their Levenshtein distance is small
// relative to their length.
func sameVendor(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return true
	}
	if len(la) < 5 || len(lb) < 5 {
		// too short for prefix or fuzzy evidence ("Uber" vs "Uber Eats")
		return false
	}
	if strings.HasPrefix(la, lb) || strings.HasPrefix(lb, la) {
		return true
	}
	return fuzzy.LevenshteinDistance(la, lb) <= similarityThreshold
}

func absCents(c int64) int64 {
	if c < 0 {
		return -c
	}
	return c
}
