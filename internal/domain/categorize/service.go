package categorize

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
	"github.com/mpalmeida/spendsight/pkg/money"
)

// ServiceConfig tunes the categorization pass.
type ServiceConfig struct {
	// ConfidenceThreshold: assignments below it are queued for user
	// confirmation rather than silently accepted.
	ConfidenceThreshold float64
	BatchSize           int
	MaxInFlight         int
	FuzzyEnabled        bool
	// Context is a free-text session hint forwarded to the external
	// classifier (bank, country, currency).
	Context string
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 4
	}
	return c
}

// Service walks transactions through the categorization state machine:
// local engine first, external classifier for the leftovers, user feedback
// folding back into the session rule set.
type Service struct {
	cfg        ServiceConfig
	categories *Config
	engine     *Engine
	classifier Classifier // nil means local-only
	logger     *slog.Logger

	mu          sync.Mutex
	rules       map[string]sessionRule // keyed by keyword, last writer wins
	allocations map[string]*money.AllocationSet
}

// NewService builds a categorizer. classifier may be nil, in which case
// unmatched items go straight to StillUncategorized.
func NewService(categories *Config, classifier Classifier, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	engine, err := NewEngine(categories)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:         cfg.withDefaults(),
		categories:  categories,
		engine:      engine,
		classifier:  classifier,
		logger:      logger,
		rules:       map[string]sessionRule{},
		allocations: map[string]*money.AllocationSet{},
	}, nil
}

// Categorize runs the full pass. Items come back in input order. Ctx
// cancellation stops new external batches; batches already in flight finish
// and keep their results.
func (s *Service) Categorize(ctx context.Context, txs []normalize.Transaction) []Item {
	items := make([]Item, len(txs))
	var pending []int

	for i, tx := range txs {
		items[i] = s.matchLocally(tx)
		if items[i].Status == StatusPendingExternal {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		if s.classifier == nil {
			for _, idx := range pending {
				items[idx].Status = StatusStillUncategorized
			}
		} else {
			s.classifyExternally(ctx, items, pending)
		}
	}
	return items
}

// matchLocally runs the engine (and fuzzy fallback) over one transaction.
func (s *Service) matchLocally(tx normalize.Transaction) Item {
	item := Item{Transaction: tx, Status: StatusUncategorized}
	text := tx.Merchant + " " + tx.RawDescription

	if m := s.engine.Match(text); m != nil {
		item.Status = StatusLocallyMatched
		item.Category = m.Category
		item.Confidence = m.Confidence
		item.Source = SourceLocalRule
		item.NeedsConfirmation = m.Confidence < s.cfg.ConfidenceThreshold
		if subs := s.engine.Subcategories(m.Category); len(subs) > 0 {
			item.Subcategory = subs[0]
		}
		return item
	}

	if s.cfg.FuzzyEnabled {
		if m := s.engine.FuzzyMatch(text); m != nil {
			item.Status = StatusLocallyMatched
			item.Category = m.Category
			item.Confidence = m.Confidence
			item.Source = SourceFuzzy
			item.NeedsConfirmation = true
			return item
		}
	}

	item.Status = StatusPendingExternal
	return item
}

// classifyExternally sends pending items to the classifier in batches with
// bounded concurrency. A failed batch degrades only its own items.
func (s *Service) classifyExternally(ctx context.Context, items []Item, pending []int) {
	type batchJob struct {
		indices []int
		batch   Batch
	}

	var jobs []batchJob
	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		indices := pending[start:end]

		batch := Batch{Categories: s.categories.Names(), Context: s.cfg.Context}
		for _, idx := range indices {
			tx := items[idx].Transaction
			batch.Items = append(batch.Items, BatchItem{
				ID:          tx.ID.String(),
				Description: tx.RawDescription,
				Merchant:    tx.Merchant,
				AmountCents: tx.AmountCents,
				Date:        tx.Date.Format("2006-01-02"),
			})
		}
		jobs = append(jobs, batchJob{indices: indices, batch: batch})
	}

	sem := make(chan struct{}, s.cfg.MaxInFlight)
	var wg sync.WaitGroup
	var mu sync.Mutex

	// in-flight batches run to completion even after cancellation; only
	// launching new ones checks ctx
	flightCtx := context.WithoutCancel(ctx)

	for _, job := range jobs {
		if ctx.Err() != nil {
			mu.Lock()
			for _, idx := range job.indices {
				items[idx].Status = StatusStillUncategorized
			}
			mu.Unlock()
			continue
		}

		sem <- struct{}{}

		// cancellation may have arrived while blocked on the semaphore;
		// a batch that has not launched yet must not start now
		if ctx.Err() != nil {
			<-sem
			mu.Lock()
			for _, idx := range job.indices {
				items[idx].Status = StatusStillUncategorized
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(job batchJob) {
			defer wg.Done()
			defer func() { <-sem }()

			results, err := s.classifier.Classify(flightCtx, job.batch)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Warn("external classification batch failed",
					slog.Int("items", len(job.indices)),
					slog.String("error", err.Error()))
				for _, idx := range job.indices {
					items[idx].Status = StatusStillUncategorized
				}
				return
			}
			if len(results) < len(job.indices) {
				s.logger.Warn("classifier returned short result set",
					slog.Int("want", len(job.indices)),
					slog.Int("got", len(results)))
			}
			for i, idx := range job.indices {
				if i >= len(results) {
					items[idx].Status = StatusStillUncategorized
					continue
				}
				s.applyExternal(&items[idx], results[i])
			}
		}(job)
	}
	wg.Wait()
}

// applyExternal folds one classifier answer into an item. Unknown or empty
// categories degrade the item instead of inventing a bucket.
func (s *Service) applyExternal(item *Item, res ClassificationResult) {
	if res.Category == "" {
		item.Status = StatusStillUncategorized
		return
	}
	if _, ok := s.categories.Lookup(res.Category); !ok {
		s.logger.Warn("classifier returned unknown category",
			slog.String("category", res.Category))
		item.Status = StatusStillUncategorized
		return
	}

	item.Status = StatusExternallyMatched
	item.Category = res.Category
	item.Confidence = res.Confidence
	item.Source = SourceExternal
	item.NeedsConfirmation = res.Confidence < s.cfg.ConfidenceThreshold
}

// Rematch runs only the local engine over one transaction, picking up any
// session rules added since the first pass. No external call is made;
// still-unmatched transactions come back StillUncategorized.
func (s *Service) Rematch(tx normalize.Transaction) Item {
	item := s.matchLocally(tx)
	if item.Status == StatusPendingExternal {
		item.Status = StatusStillUncategorized
	}
	return item
}

// ApplyUserFeedback records a user's category decision: the item becomes
// UserReviewed at full confidence, and the merchant maps to that category
// for the rest of the session so later items match locally. Calling it
// again with the same arguments is a no-op; a different category replaces
// the earlier rule (last writer wins).
func (s *Service) ApplyUserFeedback(item *Item, category string) error {
	if _, ok := s.categories.Lookup(category); !ok {
		return &money.ValidationError{Field: "category", Message: "unknown category " + category}
	}

	item.Status = StatusUserReviewed
	item.Category = category
	item.Confidence = 1.0
	item.Source = SourceUserOverride
	item.NeedsConfirmation = false

	keyword := strings.ToLower(item.Transaction.Merchant)
	if keyword == "" {
		return nil
	}

	s.mu.Lock()
	existing, ok := s.rules[keyword]
	s.rules[keyword] = sessionRule{keyword: keyword, category: category}
	rules := make([]sessionRule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	s.mu.Unlock()

	if ok && existing.category == category {
		return nil // idempotent
	}
	return s.engine.rebuild(s.categories, rules)
}

// SessionRules returns the feedback-derived rules accumulated so far.
func (s *Service) SessionRules() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.rules))
	for kw, r := range s.rules {
		out[kw] = r.category
	}
	return out
}

// SetAllocation registers a percentage split for one merchant's spend.
func (s *Service) SetAllocation(merchant string, set *money.AllocationSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocations[strings.ToLower(merchant)] = set
}

// AllocationFor returns the split registered for a merchant, if any.
func (s *Service) AllocationFor(merchant string) (*money.AllocationSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.allocations[strings.ToLower(merchant)]
	return set, ok
}
