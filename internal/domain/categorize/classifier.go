package categorize

import (
	"context"
)

// BatchItem is one transaction sent for external classification.
type BatchItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Merchant    string `json:"merchant"`
	AmountCents int64  `json:"amountCents"`
	Date        string `json:"date"`
}

// Batch is a classification request. Categories constrain the answer space;
// Context carries free-text session hints (country, bank, currency).
type Batch struct {
	Items      []BatchItem `json:"transactions"`
	Categories []string    `json:"categories"`
	Context    string      `json:"context,omitempty"`
}

// ClassificationResult is the per-item answer, index-aligned with the
// request batch.
type ClassificationResult struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the capability boundary to the external categorization
// service. Implementations must preserve input order in the result slice
// and respect ctx cancellation.
type Classifier interface {
	Classify(ctx context.Context, batch Batch) ([]ClassificationResult, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, batch Batch) ([]ClassificationResult, error)

func (f ClassifierFunc) Classify(ctx context.Context, batch Batch) ([]ClassificationResult, error) {
	return f(ctx, batch)
}
