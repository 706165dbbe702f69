// Package review backs the user-correction loop with a session-scoped
// full-text index over normalized transactions. When the user fixes one
// item, similar transactions in the same session can be found and re-run
// through the matcher.
package review

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
)

// document is the indexed view of one categorization item.
type document struct {
	ID          string `json:"id"`
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}

// Hit is one similar-transaction result.
type Hit struct {
	ID       uuid.UUID
	Merchant string
	Category string
	Status   string
	Score    float64
}

// Index is an in-memory bleve index over the session's items. Safe for
// concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewIndex creates the session index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("creating review index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("merchant", textField)
	doc.AddFieldMappingsAt("description", textField)
	doc.AddFieldMappingsAt("category", keywordField)
	doc.AddFieldMappingsAt("status", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// Add indexes items in one batch; it also refreshes items indexed earlier
// (same ID overwrites).
func (ix *Index) Add(items []categorize.Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.index.NewBatch()
	for _, item := range items {
		d := toDocument(item)
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("indexing %s: %w", d.ID, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("review index batch: %w", err)
	}
	return nil
}

// Update re-indexes a single item after its status or category changed.
func (ix *Index) Update(item categorize.Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	d := toDocument(item)
	return ix.index.Index(d.ID, d)
}

func toDocument(item categorize.Item) document {
	return document{
		ID:          item.Transaction.ID.String(),
		Merchant:    item.Transaction.Merchant,
		Description: item.Transaction.RawDescription,
		Category:    item.Category,
		Status:      item.Status.String(),
	}
}

// Similar finds items whose merchant or description resembles the given
// text, with one edit of typo tolerance. The item with the given id is
// excluded from the results.
func (ix *Index) Similar(text string, excludeID uuid.UUID, limit int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	q := bleve.NewMatchQuery(text)
	q.SetFuzziness(1)

	req := bleve.NewSearchRequest(q)
	req.Size = limit + 1 // room to drop the excluded item
	req.Fields = []string{"*"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("similar search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil || id == excludeID {
			continue
		}
		hit := Hit{ID: id, Score: h.Score}
		if v, ok := h.Fields["merchant"].(string); ok {
			hit.Merchant = v
		}
		if v, ok := h.Fields["category"].(string); ok {
			hit.Category = v
		}
		if v, ok := h.Fields["status"].(string); ok {
			hit.Status = v
		}
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// SimilarUncategorized narrows Similar to items still lacking a category,
// the candidates worth re-matching after a user correction.
func (ix *Index) SimilarUncategorized(text string, excludeID uuid.UUID, limit int) ([]Hit, error) {
	all, err := ix.Similar(text, excludeID, limit*3)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, limit)
	for _, h := range all {
		if h.Status == categorize.StatusStillUncategorized.String() ||
			h.Status == categorize.StatusPendingExternal.String() {
			out = append(out, h)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Count returns the number of indexed items.
func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.index.DocCount()
}

// Close releases the index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}
