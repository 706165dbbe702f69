package categorize

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// keyword weights: a regex pattern hit is stronger evidence than a single
// keyword substring
const (
	keywordWeight = 1.0
	patternWeight = 2.0
)

// Match is the outcome of running the local engine over one description.
type Match struct {
	Category    string
	Subcategory string
	// Confidence is 1 − runnerUpScore/bestScore: 1.0 for an uncontested
	// winner, approaching 0 as the runner-up closes in. An exact tie
	// produces no match at all.
	Confidence float64
	Score      float64
}

// Engine matches descriptions against category keywords in a single pass
// using Aho-Corasick, plus compiled regex patterns per category. Rebuilt
// whenever user feedback adds rules; safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	matcher  *ahocorasick.Matcher
	keywords []string // index-aligned with matcher patterns
	// keywordCats[i] lists the categories that claim keywords[i]
	keywordCats [][]string

	patterns []categoryPattern
	subcats  map[string][]string
}

type categoryPattern struct {
	re       *regexp.Regexp
	category string
}

// NewEngine builds an engine from the session category config.
func NewEngine(cfg *Config) (*Engine, error) {
	e := &Engine{}
	if err := e.rebuild(cfg, nil); err != nil {
		return nil, err
	}
	return e, nil
}

// sessionRule is a feedback-derived (pattern → category) rule.
type sessionRule struct {
	keyword  string
	category string
}

// rebuild reconstructs the matcher from config categories plus any
// session rules. Session rules are treated as ordinary keywords.
func (e *Engine) rebuild(cfg *Config, extra []sessionRule) error {
	index := map[string]int{}
	var keywords []string
	var keywordCats [][]string

	add := func(kw, category string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return
		}
		if i, ok := index[kw]; ok {
			keywordCats[i] = append(keywordCats[i], category)
			return
		}
		index[kw] = len(keywords)
		keywords = append(keywords, kw)
		keywordCats = append(keywordCats, []string{category})
	}

	var patterns []categoryPattern
	subcats := map[string][]string{}
	for _, cat := range append(append([]Category{}, cfg.Expense...), cfg.Income...) {
		for _, kw := range cat.Keywords {
			add(kw, cat.Name)
		}
		for _, p := range cat.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return fmt.Errorf("category %s: bad pattern %q: %w", cat.Name, p, err)
			}
			patterns = append(patterns, categoryPattern{re: re, category: cat.Name})
		}
		subcats[cat.Name] = cat.Subcategories
	}
	for _, r := range extra {
		add(r.keyword, r.category)
	}

	var matcher *ahocorasick.Matcher
	if len(keywords) > 0 {
		byteKeywords := make([][]byte, len(keywords))
		for i, kw := range keywords {
			byteKeywords[i] = []byte(kw)
		}
		matcher = ahocorasick.NewMatcher(byteKeywords)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher = matcher
	e.keywords = keywords
	e.keywordCats = keywordCats
	e.patterns = patterns
	e.subcats = subcats
	return nil
}

// Match scores every category against the description and returns the
// winner, or nil when nothing matched or the top two scores tie exactly.
func (e *Engine) Match(description string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	scores := e.score(strings.ToLower(description))
	if len(scores) == 0 {
		return nil
	}

	best, runnerUp := "", 0.0
	bestScore := 0.0
	for cat, s := range scores {
		switch {
		case s > bestScore:
			runnerUp = bestScore
			best, bestScore = cat, s
		case s > runnerUp:
			runnerUp = s
		}
	}

	if runnerUp == bestScore {
		// dead heat: the engine refuses to guess
		return nil
	}

	return &Match{
		Category:   best,
		Confidence: 1 - runnerUp/bestScore,
		Score:      bestScore,
	}
}

func (e *Engine) score(lowered string) map[string]float64 {
	scores := map[string]float64{}

	if e.matcher != nil {
		for _, idx := range e.matcher.Match([]byte(lowered)) {
			if idx < 0 || idx >= len(e.keywordCats) {
				continue
			}
			// longer keywords are more specific evidence
			w := keywordWeight + float64(len(e.keywords[idx]))/20.0
			for _, cat := range e.keywordCats[idx] {
				scores[cat] += w
			}
		}
	}

	for _, cp := range e.patterns {
		if cp.re.MatchString(lowered) {
			scores[cp.category] += patternWeight
		}
	}
	return scores
}

// Subcategories returns the configured subcategories for a category.
func (e *Engine) Subcategories(category string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.subcats[category]
}
