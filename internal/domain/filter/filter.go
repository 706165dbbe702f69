// Package filter decides which normalized transactions continue through the
// pipeline. Every input lands in exactly one of kept, flagged or dropped;
// nothing is silently lost.
package filter

import (
	"regexp"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

// DropReason explains why a transaction was removed.
type DropReason string

const (
	ReasonTransfer           DropReason = "transfer"
	ReasonFee                DropReason = "fee"
	ReasonInvestmentTransfer DropReason = "investment-transfer"
	ReasonZeroAmount         DropReason = "zero-amount"

	// ReasonReviewDeclined is attached by the review gate, not by Apply:
	// a flagged transaction the user chose not to keep.
	ReasonReviewDeclined DropReason = "review-declined"
)

// Dropped pairs a removed transaction with its reason.
type Dropped struct {
	Transaction normalize.Transaction
	Reason      DropReason
}

// Flagged is a transaction that needs an explicit user decision before the
// pipeline continues past the review gate.
type Flagged struct {
	Transaction normalize.Transaction
	Reason      string
}

// Result partitions the input. Kept ∪ Flagged ∪ Dropped covers every input
// transaction exactly once, preserving input order within each bucket.
type Result struct {
	Kept    []normalize.Transaction
	Flagged []Flagged
	Dropped []Dropped
}

// Config tunes filtering behavior.
type Config struct {
	// WithdrawalReviewThresholdCents: cash withdrawals strictly above this
	// are flagged for review rather than kept. Zero disables flagging.
	WithdrawalReviewThresholdCents int64
}

var (
	interestRe   = regexp.MustCompile(`(?i)\binterest\b`)
	investmentRe = regexp.MustCompile(`(?i)\b(vanguard|etrade|e\*trade|fidelity|robinhood|brokerage|commsec|vesting|investment)\b`)
	withdrawalRe = regexp.MustCompile(`(?i)\b(atm|wdl|withdrawal|cash out)\b`)
)

// Apply runs the ordered dispositions over each transaction; the first rule
// that matches decides:
//  1. transfers are dropped
//  2. fees are dropped, except interest
//  3. investment transfers are dropped
//  4. large cash withdrawals are flagged for review
//  5. everything else is kept
func Apply(txs []normalize.Transaction, cfg Config) Result {
	res := Result{}

	for _, tx := range txs {
		switch disposition(tx, cfg) {
		case dispositionDropTransfer:
			res.Dropped = append(res.Dropped, Dropped{Transaction: tx, Reason: ReasonTransfer})
		case dispositionDropFee:
			res.Dropped = append(res.Dropped, Dropped{Transaction: tx, Reason: ReasonFee})
		case dispositionDropInvestment:
			res.Dropped = append(res.Dropped, Dropped{Transaction: tx, Reason: ReasonInvestmentTransfer})
		case dispositionDropZero:
			res.Dropped = append(res.Dropped, Dropped{Transaction: tx, Reason: ReasonZeroAmount})
		case dispositionFlag:
			res.Flagged = append(res.Flagged, Flagged{
				Transaction: tx,
				Reason:      "cash withdrawal above review threshold",
			})
		default:
			res.Kept = append(res.Kept, tx)
		}
	}
	return res
}

type dispositionCode int

const (
	dispositionKeep dispositionCode = iota
	dispositionDropTransfer
	dispositionDropFee
	dispositionDropInvestment
	dispositionDropZero
	dispositionFlag
)

func disposition(tx normalize.Transaction, cfg Config) dispositionCode {
	if tx.Kind == normalize.KindTransfer {
		return dispositionDropTransfer
	}
	if tx.Kind == normalize.KindFee && !interestRe.MatchString(tx.RawDescription) {
		return dispositionDropFee
	}
	if investmentRe.MatchString(tx.RawDescription) {
		return dispositionDropInvestment
	}
	if tx.Kind == normalize.KindIgnore {
		return dispositionDropZero
	}
	if cfg.WithdrawalReviewThresholdCents > 0 &&
		withdrawalRe.MatchString(tx.RawDescription) &&
		absCents(tx.AmountCents) > cfg.WithdrawalReviewThresholdCents {
		return dispositionFlag
	}
	return dispositionKeep
}

func absCents(c int64) int64 {
	if c < 0 {
		return -c
	}
	return c
}
