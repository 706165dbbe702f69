// Package normalize turns raw statement records into clean transactions:
// merchant names stripped of processor noise, a transaction kind, and a
// foreign-spend flag. Normalization is pure and deterministic; the same
// record with the same rule set always yields the same transaction.
package normalize

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpalmeida/spendsight/internal/domain/ingest/parser"
)

// Kind classifies what a statement line fundamentally is.
type Kind int

const (
	KindExpense Kind = iota
	KindIncome
	KindTransfer
	KindFee
	KindIgnore
)

func (k Kind) String() string {
	switch k {
	case KindExpense:
		return "expense"
	case KindIncome:
		return "income"
	case KindTransfer:
		return "transfer"
	case KindFee:
		return "fee"
	case KindIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Transaction is a normalized statement line.
type Transaction struct {
	ID             uuid.UUID
	Date           time.Time
	RawDescription string
	// Merchant is the cleaned display name, either a rule's canonical name
	// or the title-cased residue after noise stripping.
	Merchant    string
	AmountCents int64
	Currency    string
	Kind        Kind
	// Foreign marks spend that went through currency conversion.
	Foreign    bool
	SourceFile string
	Line       int
}

// Normalize cleans a single raw record against the rule set.
func Normalize(raw parser.RawRecord, rules *RuleSet) Transaction {
	tx := Transaction{
		ID:             raw.ID,
		Date:           raw.Date,
		RawDescription: raw.Description,
		AmountCents:    raw.AmountCents,
		Currency:       raw.CurrencyHint,
		SourceFile:     raw.SourceFile,
		Line:           raw.Line,
	}

	tx.Kind = rules.classifyKind(raw.Description, raw.AmountCents)
	tx.Foreign = rules.isForeign(raw.Description)
	tx.Merchant = rules.merchantName(raw.Description)
	return tx
}

// NormalizeAll normalizes records in order. A conversion-fee line marks the
// preceding transaction as foreign, so the pass is sequential.
func NormalizeAll(records []parser.RawRecord, rules *RuleSet) []Transaction {
	txs := make([]Transaction, 0, len(records))
	for _, rec := range records {
		txs = append(txs, Normalize(rec, rules))
	}

	for i, tx := range txs {
		if i > 0 && rules.isConversionFee(tx.RawDescription) {
			txs[i-1].Foreign = true
		}
	}
	return txs
}

// merchantName strips noise and applies canonical-name rules; first match
// wins. Unmatched descriptions pass through title-cased.
func (rs *RuleSet) merchantName(raw string) string {
	cleaned := rs.stripNoise(raw)

	upper := strings.ToUpper(cleaned)
	for _, rule := range rs.merchants {
		if rule.pattern.MatchString(upper) {
			return rule.name
		}
	}
	return titleCase(cleaned)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
