package resolve

import (
	"sort"
	"unicode/utf8"

	"github.com/sells-group/childcare-cli/internal/model"
)

const (
	// DefaultThreshold is the score a match must strictly exceed.
	DefaultThreshold = 85

	// MinCandidateLen is the shortest candidate key worth scoring.
	MinCandidateLen = 3
)

// Matcher resolves provider candidate keys against a fixed set of vendor
// keys. It is read-only after construction and safe for concurrent use.
type Matcher struct {
	keys      []string
	processed []processed
	threshold int
}

// NewMatcher builds a matcher over keys. Keys are scored in lexicographic
// order, so among equal scores the lexicographically first key wins.
func NewMatcher(keys []string, threshold int) *Matcher {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	procs := make([]processed, len(sorted))
	for i, k := range sorted {
		procs[i] = process(k)
	}
	return &Matcher{keys: sorted, processed: procs, threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() int { return m.threshold }

// Len returns the number of vendor keys.
func (m *Matcher) Len() int { return len(m.keys) }

// ExtractOne returns the best-scoring vendor key for query and its score.
// It returns "", 0 when there are no keys.
func (m *Matcher) ExtractOne(query string) (string, int) {
	q := process(query)

	var pat *pattern
	if len(q) <= 64 {
		pat = newPattern(string(q))
	}

	bestKey, bestScore := "", -1
	for i, k := range m.processed {
		if upperBound(len(q), len(k)) <= bestScore {
			continue
		}
		score := m.score(q, pat, k)
		if score > bestScore {
			bestKey, bestScore = m.keys[i], score
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return bestKey, bestScore
}

func (m *Matcher) score(q processed, pat *pattern, k processed) int {
	if len(q) == 0 || len(k) == 0 {
		return 0
	}
	var common int
	if pat != nil {
		common = lcsBits(pat, string(k))
	} else {
		common = lcs(string(q), string(k))
	}
	return roundScore(2*common, len(q)+len(k))
}

// Match scores every candidate of at least MinCandidateLen runes and keeps
// the single best (candidate, key, score). The result is accepted only when
// the score is strictly greater than the threshold. Earlier candidates win
// ties.
func (m *Matcher) Match(candidates []string) model.MatchResult {
	var best model.MatchResult
	if len(m.keys) == 0 {
		return best
	}

	for _, c := range candidates {
		if utf8.RuneCountInString(c) < MinCandidateLen {
			continue
		}
		key, score := m.ExtractOne(c)
		if score > best.Confidence {
			best = model.MatchResult{Candidate: c, MatchedKey: key, Confidence: score}
		}
	}

	best.Accepted = best.MatchedKey != "" && best.Confidence > m.threshold
	return best
}
