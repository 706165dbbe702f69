package categorize

import (
	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

// Status tracks an item through categorization. Transitions:
//
//	Uncategorized → LocallyMatched | PendingExternal
//	PendingExternal → ExternallyMatched | StillUncategorized
//	any → UserReviewed
type Status int

const (
	StatusUncategorized Status = iota
	StatusLocallyMatched
	StatusPendingExternal
	StatusExternallyMatched
	StatusStillUncategorized
	StatusUserReviewed
)

func (s Status) String() string {
	switch s {
	case StatusUncategorized:
		return "uncategorized"
	case StatusLocallyMatched:
		return "locally-matched"
	case StatusPendingExternal:
		return "pending-external"
	case StatusExternallyMatched:
		return "externally-matched"
	case StatusStillUncategorized:
		return "still-uncategorized"
	case StatusUserReviewed:
		return "user-reviewed"
	default:
		return "unknown"
	}
}

// Source records which mechanism produced the assignment.
type Source string

const (
	SourceLocalRule    Source = "local-rule"
	SourceFuzzy        Source = "fuzzy"
	SourceExternal     Source = "external"
	SourceUserOverride Source = "user-override"
)

// Item is one transaction moving through categorization.
type Item struct {
	Transaction normalize.Transaction
	Status      Status
	Category    string
	Subcategory string
	Confidence  float64
	Source      Source
	// NeedsConfirmation marks assigned-but-low-confidence results queued
	// for user confirmation.
	NeedsConfirmation bool
}

// Categorized reports whether the item carries a category assignment.
func (it Item) Categorized() bool {
	return it.Category != "" && it.Status != StatusUncategorized
}
