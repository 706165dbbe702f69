package insights

import (
	"fmt"
	"sort"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

// MerchantSpend is one merchant's spend over the session period.
type MerchantSpend struct {
	Merchant    string
	AmountCents int64
	TxCount     int
}

// Summary is the headline view of a session: totals, top merchants, and
// human-readable highlights.
type Summary struct {
	TotalSpendCents  int64
	TotalIncomeCents int64
	NetCents         int64
	TopMerchants     []MerchantSpend
	Highlights       []string
}

// Summarize computes session totals and the top-N merchants by spend from
// the normalized transactions that survived filtering.
func Summarize(txs []normalize.Transaction, topN int) *Summary {
	if topN <= 0 {
		topN = 5
	}

	s := &Summary{}
	byMerchant := make(map[string]*MerchantSpend)
	for _, tx := range txs {
		if tx.AmountCents < 0 {
			s.TotalSpendCents += -tx.AmountCents
			m, ok := byMerchant[tx.Merchant]
			if !ok {
				m = &MerchantSpend{Merchant: tx.Merchant}
				byMerchant[tx.Merchant] = m
			}
			m.AmountCents += -tx.AmountCents
			m.TxCount++
		} else {
			s.TotalIncomeCents += tx.AmountCents
		}
	}
	s.NetCents = s.TotalIncomeCents - s.TotalSpendCents

	merchants := make([]MerchantSpend, 0, len(byMerchant))
	for _, m := range byMerchant {
		merchants = append(merchants, *m)
	}
	sort.Slice(merchants, func(i, j int) bool {
		if merchants[i].AmountCents != merchants[j].AmountCents {
			return merchants[i].AmountCents > merchants[j].AmountCents
		}
		return merchants[i].Merchant < merchants[j].Merchant
	})
	if len(merchants) > topN {
		merchants = merchants[:topN]
	}
	s.TopMerchants = merchants
	s.Highlights = highlights(s)
	return s
}

func highlights(s *Summary) []string {
	var out []string
	switch {
	case s.NetCents > 0:
		out = append(out, fmt.Sprintf("You saved %.2f over the period", float64(s.NetCents)/100))
	case s.NetCents < 0:
		out = append(out, fmt.Sprintf("You spent %.2f more than you earned", float64(-s.NetCents)/100))
	}
	if len(s.TopMerchants) > 0 {
		top := s.TopMerchants[0]
		out = append(out, fmt.Sprintf("Top merchant: %s (%.2f across %d transactions)",
			top.Merchant, float64(top.AmountCents)/100, top.TxCount))
	}
	return out
}
