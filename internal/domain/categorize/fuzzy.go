package categorize

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// fuzzyConfidence is deliberately low: a fuzzy hit is a hint, and always
// lands below the confirmation threshold.
const fuzzyConfidence = 0.5

// maxFuzzyDistance bounds the Levenshtein distance for a keyword to count
// as a near-miss.
const maxFuzzyDistance = 2

// FuzzyMatch tries approximate keyword matching for descriptions the exact
// engine missed, catching bank-mangled spellings ("WOLWORTHS", "NETFLX").
// Returns nil when no keyword is close enough.
func (e *Engine) FuzzyMatch(description string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	words := strings.Fields(strings.ToLower(description))
	if len(words) == 0 {
		return nil
	}

	bestDist := maxFuzzyDistance + 1
	bestCat := ""
	for i, kw := range e.keywords {
		if len(kw) < 4 {
			// short keywords produce junk fuzzy hits
			continue
		}
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			d := fuzzy.LevenshteinDistance(w, kw)
			if d < bestDist {
				bestDist = d
				bestCat = e.keywordCats[i][0]
			}
		}
	}

	if bestCat == "" || bestDist > maxFuzzyDistance {
		return nil
	}
	return &Match{
		Category:   bestCat,
		Confidence: fuzzyConfidence,
	}
}
