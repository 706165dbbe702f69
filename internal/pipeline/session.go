// Package pipeline orchestrates one upload-to-report session: ingest,
// normalize, filter, a review gate for flagged transactions, group,
// categorize, project. Stage order is explicit and the session resumes
// from the gate without re-running upstream stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
	"github.com/mpalmeida/spendsight/internal/domain/filter"
	"github.com/mpalmeida/spendsight/internal/domain/group"
	"github.com/mpalmeida/spendsight/internal/domain/ingest/parser"
	"github.com/mpalmeida/spendsight/internal/domain/insights"
	"github.com/mpalmeida/spendsight/internal/domain/normalize"
	"github.com/mpalmeida/spendsight/internal/domain/review"
)

// Phase tracks session progress through the stage sequence.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseAwaitingReview
	PhaseReadyToFinish
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseAwaitingReview:
		return "awaiting-review"
	case PhaseReadyToFinish:
		return "ready-to-finish"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyIngested = errors.New("session already ingested a file")
	ErrAwaitingReview  = errors.New("flagged transactions await a review decision")
	ErrNotIngested     = errors.New("session has not ingested a file")
	ErrUnknownFlagged  = errors.New("decision references an unknown flagged transaction")
)

// Options configures a session.
type Options struct {
	Rules        *normalize.RuleSet
	Filter       filter.Config
	Parser       parser.Options
	Categories   *categorize.Config
	Classifier   categorize.Classifier // nil means local-only
	Categorizer  categorize.ServiceConfig
	PeriodMonths float64
	TopN         int
	Logger       *slog.Logger
}

// Report is the assembled output of a finished session, the structure the
// visualization boundary consumes.
type Report struct {
	SessionID  uuid.UUID
	SourceFile string

	TotalRows  int
	ParsedRows int
	RowErrors  []*parser.MalformedRowError

	Dropped []filter.Dropped
	Groups  []group.Group
	Items   []categorize.Item

	Projections *insights.Report
	Summary     *insights.Summary
}

// Session holds the in-memory state of one upload-to-report cycle.
type Session struct {
	ID uuid.UUID

	opts   Options
	logger *slog.Logger
	svc    *categorize.Service
	index  *review.Index

	phase      Phase
	sourceFile string
	parsed     *parser.Result
	normalized []normalize.Transaction
	filtered   filter.Result
	kept       []normalize.Transaction
	items      []categorize.Item
	groups     []group.Group
	report     *Report
}

// NewSession wires a session from options. Nil Rules/Categories fall back
// to the built-in defaults.
func NewSession(opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rules == nil {
		opts.Rules = normalize.DefaultRules()
	}
	if opts.Categories == nil {
		opts.Categories = categorize.DefaultConfig()
	}
	if opts.PeriodMonths == 0 {
		opts.PeriodMonths = 12
	}

	svc, err := categorize.NewService(opts.Categories, opts.Classifier, opts.Categorizer, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("building categorizer: %w", err)
	}
	index, err := review.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("building review index: %w", err)
	}

	return &Session{
		ID:     uuid.New(),
		opts:   opts,
		logger: opts.Logger,
		svc:    svc,
		index:  index,
	}, nil
}

// Categorizer exposes the session's categorization service for allocation
// registration and direct feedback.
func (s *Session) Categorizer() *categorize.Service { return s.svc }

// Phase returns the session's current phase.
func (s *Session) Phase() Phase { return s.phase }

// Ingest parses the statement, normalizes and filters it, and stops at the
// review gate when any transaction was flagged. Returns the flagged set;
// when it is empty the session is immediately ready to finish.
func (s *Session) Ingest(r io.Reader, filename string) ([]filter.Flagged, error) {
	if s.phase != PhaseNew {
		return nil, ErrAlreadyIngested
	}

	parsed, err := parser.Parse(r, filename, s.opts.Parser)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", filename, err)
	}
	s.parsed = parsed
	s.sourceFile = filename
	if len(parsed.RowErrors) > 0 {
		s.logger.Warn("rows skipped during parse",
			slog.String("file", filename),
			slog.Int("skipped", len(parsed.RowErrors)))
	}

	s.normalized = normalize.NormalizeAll(parsed.Records, s.opts.Rules)
	s.filtered = filter.Apply(s.normalized, s.opts.Filter)
	s.logger.Info("statement filtered",
		slog.Int("kept", len(s.filtered.Kept)),
		slog.Int("flagged", len(s.filtered.Flagged)),
		slog.Int("dropped", len(s.filtered.Dropped)))

	if len(s.filtered.Flagged) > 0 {
		s.phase = PhaseAwaitingReview
		return s.filtered.Flagged, nil
	}
	s.kept = s.filtered.Kept
	s.phase = PhaseReadyToFinish
	return nil, nil
}

// ApplyReviewDecisions resolves the gate: flagged transactions the user
// kept rejoin the kept set in statement order, the rest are dropped.
// Flagged transactions absent from decisions are dropped. Upstream stages
// are not re-run.
func (s *Session) ApplyReviewDecisions(keep map[uuid.UUID]bool) error {
	if s.phase != PhaseAwaitingReview {
		return fmt.Errorf("phase %s: %w", s.phase, ErrNotIngested)
	}

	flaggedIDs := make(map[uuid.UUID]bool, len(s.filtered.Flagged))
	for _, f := range s.filtered.Flagged {
		flaggedIDs[f.Transaction.ID] = true
	}
	for id := range keep {
		if !flaggedIDs[id] {
			return fmt.Errorf("%w: %s", ErrUnknownFlagged, id)
		}
	}

	approved := make(map[uuid.UUID]bool, len(keep))
	for id, ok := range keep {
		if ok {
			approved[id] = true
		}
	}

	// Rebuild the kept set in original statement order so the decision
	// does not reshuffle downstream grouping.
	s.kept = s.kept[:0]
	for _, tx := range s.normalized {
		if inKept(s.filtered.Kept, tx.ID) || approved[tx.ID] {
			s.kept = append(s.kept, tx)
		}
	}

	// Declined flagged transactions still have to surface in the report's
	// dropped set, otherwise they vanish from the accounting entirely.
	for _, f := range s.filtered.Flagged {
		if !approved[f.Transaction.ID] {
			s.filtered.Dropped = append(s.filtered.Dropped, filter.Dropped{
				Transaction: f.Transaction,
				Reason:      filter.ReasonReviewDeclined,
			})
		}
	}
	s.phase = PhaseReadyToFinish
	return nil
}

func inKept(kept []normalize.Transaction, id uuid.UUID) bool {
	for _, tx := range kept {
		if tx.ID == id {
			return true
		}
	}
	return false
}

// Finish runs the remaining stages over the kept set and assembles the
// report. Ctx cancellation degrades unstarted classifier batches without
// failing the session.
func (s *Session) Finish(ctx context.Context) (*Report, error) {
	switch s.phase {
	case PhaseAwaitingReview:
		return nil, ErrAwaitingReview
	case PhaseNew:
		return nil, ErrNotIngested
	case PhaseComplete:
		return s.report, nil
	}

	s.groups = group.Partition(s.kept)
	s.items = s.svc.Categorize(ctx, s.kept)

	if err := s.index.Add(s.items); err != nil {
		return nil, fmt.Errorf("indexing session: %w", err)
	}

	report, err := s.assemble()
	if err != nil {
		return nil, err
	}
	s.report = report
	s.phase = PhaseComplete
	return report, nil
}

func (s *Session) assemble() (*Report, error) {
	lookup := func(merchant string, cents int64, currency string) (map[string]int64, bool) {
		set, ok := s.svc.AllocationFor(merchant)
		if !ok {
			return nil, false
		}
		splits, err := set.ApplyCents(cents, currency)
		if err != nil {
			s.logger.Warn("allocation split failed",
				slog.String("merchant", merchant),
				slog.String("error", err.Error()))
			return nil, false
		}
		return splits, true
	}

	projections, err := insights.Project(s.items, s.opts.PeriodMonths, s.opts.Categories, lookup)
	if err != nil {
		return nil, fmt.Errorf("projecting: %w", err)
	}

	return &Report{
		SessionID:   s.ID,
		SourceFile:  s.sourceFile,
		TotalRows:   s.parsed.TotalRows,
		ParsedRows:  s.parsed.ParsedRows,
		RowErrors:   s.parsed.RowErrors,
		Dropped:     s.filtered.Dropped,
		Groups:      s.groups,
		Items:       s.items,
		Projections: projections,
		Summary:     insights.Summarize(s.kept, s.opts.TopN),
	}, nil
}

// ReviewQueue lists items that need user confirmation: low-confidence
// assignments and items nothing could categorize.
func (s *Session) ReviewQueue() []categorize.Item {
	var queue []categorize.Item
	for _, item := range s.items {
		if item.NeedsConfirmation || item.Status == categorize.StatusStillUncategorized {
			queue = append(queue, item)
		}
	}
	return queue
}

// Correct applies a user's category decision to one item, then re-matches
// similar uncategorized transactions in the session against the updated
// rule set. Returns the IDs of items the correction also resolved.
func (s *Session) Correct(itemID uuid.UUID, category string) ([]uuid.UUID, error) {
	if s.phase != PhaseComplete {
		return nil, fmt.Errorf("phase %s: session not finished", s.phase)
	}

	idx := -1
	for i := range s.items {
		if s.items[i].Transaction.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown item %s", itemID)
	}

	if err := s.svc.ApplyUserFeedback(&s.items[idx], category); err != nil {
		return nil, err
	}
	if err := s.index.Update(s.items[idx]); err != nil {
		return nil, err
	}

	// The new session rule may resolve lookalikes that previously fell
	// through; re-run the local matcher over them.
	hits, err := s.index.SimilarUncategorized(s.items[idx].Transaction.Merchant, itemID, 50)
	if err != nil {
		return nil, err
	}
	var resolved []uuid.UUID
	for _, hit := range hits {
		for i := range s.items {
			if s.items[i].Transaction.ID != hit.ID {
				continue
			}
			rematched := s.svc.Rematch(s.items[i].Transaction)
			if rematched.Categorized() && rematched.Status == categorize.StatusLocallyMatched {
				s.items[i] = rematched
				if err := s.index.Update(s.items[i]); err != nil {
					return nil, err
				}
				resolved = append(resolved, hit.ID)
			}
			break
		}
	}

	if err := s.reassemble(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// reassemble refreshes the report after corrections changed categories.
func (s *Session) reassemble() error {
	report, err := s.assemble()
	if err != nil {
		return err
	}
	s.report = report
	return nil
}

// Report returns the latest assembled report, nil before Finish.
func (s *Session) Report() *Report { return s.report }

// Close releases session resources.
func (s *Session) Close() error { return s.index.Close() }
