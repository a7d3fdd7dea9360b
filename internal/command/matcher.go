package command

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// defaultThreshold is the minimum word-overlap similarity for the
	// second tier to accept a candidate.
	defaultThreshold = 0.6

	// defaultSignificantLen is the minimum token length (exclusive) for a
	// token to participate in the substring fallback tier.
	defaultSignificantLen = 3
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum word-overlap similarity required by the
// second tier. Default: 0.6. A candidate scoring exactly the threshold
// qualifies.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithSignificantTokenLength sets the length a token must exceed to count as
// significant in the substring fallback tier. Default: 3.
func WithSignificantTokenLength(n int) Option {
	return func(m *Matcher) {
		m.significantLen = n
	}
}

// WithoutSubstringFallback disables the weak substring tier entirely. The
// fallback trades precision for recall (a single shared 4-letter token is
// enough to match); deployments that see too many false positives can turn
// it off.
func WithoutSubstringFallback() Option {
	return func(m *Matcher) {
		m.substringFallback = false
	}
}

// WithPhoneticTolerance additionally treats two tokens as equal in the
// second tier when their Jaro-Winkler similarity reaches minScore. This
// absorbs accent loss and light STT mangling ("biblioteca" vs "biblioteka")
// without loosening the exact tier. Disabled by default; typical values are
// 0.9 and up.
func WithPhoneticTolerance(minScore float64) Option {
	return func(m *Matcher) {
		m.phoneticTolerance = minScore
	}
}

// Matcher resolves a free-form transcript against a [Table] using three
// tiers in strict priority order:
//
//  1. Exact: the normalized input equals a table phrase.
//  2. Word overlap: tokens shared between input and phrase (under a relaxed
//     equality where containment counts) divided by the larger token count;
//     the first phrase reaching the highest score at or above the threshold
//     wins.
//  3. Substring fallback: the first phrase with a significant token (longer
//     than three characters) contained in the input wins.
//
// The first tier that produces a result ends the search. Matcher is
// read-only after construction and safe for concurrent use.
type Matcher struct {
	threshold         float64
	significantLen    int
	substringFallback bool
	phoneticTolerance float64
}

// NewMatcher returns a Matcher with the supplied options applied over the
// defaults (threshold 0.6, significant length 3, substring fallback on,
// phonetic tolerance off).
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		threshold:         defaultThreshold,
		significantLen:    defaultSignificantLen,
		substringFallback: true,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Tier identifies which matching tier produced a result.
type Tier string

const (
	TierExact     Tier = "exact"
	TierOverlap   Tier = "overlap"
	TierSubstring Tier = "substring"
	TierNone      Tier = "none"
)

// Match resolves input against the table and returns the winning entry.
// Case and surrounding whitespace in input are ignored. The second return
// value is false when no tier produced a match.
func (m *Matcher) Match(input string, t *Table) (Entry, bool) {
	e, _, ok := m.MatchTier(input, t)
	return e, ok
}

// MatchTier is [Matcher.Match] plus the tier that produced the result, for
// logging and metrics.
func (m *Matcher) MatchTier(input string, t *Table) (Entry, Tier, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" || t == nil || t.Len() == 0 {
		return Entry{}, TierNone, false
	}

	// Tier 1: exact.
	if e, ok := t.Lookup(normalized); ok {
		return e, TierExact, true
	}

	// Tier 2: weighted word overlap.
	if e, ok := m.bestOverlap(normalized, t); ok {
		return e, TierOverlap, true
	}

	// Tier 3: weak substring fallback.
	if m.substringFallback {
		if e, ok := m.substringMatch(normalized, t); ok {
			return e, TierSubstring, true
		}
	}

	return Entry{}, TierNone, false
}

// bestOverlap scans the table in order and returns the first entry that
// reached the highest overlap score, provided that score meets the
// threshold. Later entries must strictly beat the running maximum to take
// over, which makes ties resolve to the earliest entry.
func (m *Matcher) bestOverlap(normalized string, t *Table) (Entry, bool) {
	inputTokens := strings.Fields(normalized)
	if len(inputTokens) == 0 {
		return Entry{}, false
	}

	var (
		best      Entry
		bestScore float64
		found     bool
	)
	for _, e := range t.entries {
		score := m.overlapScore(inputTokens, strings.Fields(e.Phrase))
		if score > bestScore {
			best = e
			bestScore = score
			found = true
		}
	}
	if !found || bestScore < m.threshold {
		return Entry{}, false
	}
	return best, true
}

// overlapScore counts input tokens that match any phrase token under the
// relaxed equality and divides by the larger of the two token counts.
func (m *Matcher) overlapScore(inputTokens, phraseTokens []string) float64 {
	if len(phraseTokens) == 0 {
		return 0
	}
	hits := 0
	for _, it := range inputTokens {
		for _, pt := range phraseTokens {
			if m.tokensMatch(it, pt) {
				hits++
				break
			}
		}
	}
	denom := len(inputTokens)
	if len(phraseTokens) > denom {
		denom = len(phraseTokens)
	}
	return float64(hits) / float64(denom)
}

// tokensMatch reports whether two tokens count as equal for the overlap
// tier: identical, one contains the other, or (when phonetic tolerance is
// enabled) Jaro-Winkler similarity reaches the configured minimum.
func (m *Matcher) tokensMatch(a, b string) bool {
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	if m.phoneticTolerance > 0 {
		return matchr.JaroWinkler(a, b, false) >= m.phoneticTolerance
	}
	return false
}

// substringMatch returns the first entry with a significant token contained
// in the normalized input.
func (m *Matcher) substringMatch(normalized string, t *Table) (Entry, bool) {
	for _, e := range t.entries {
		for _, token := range strings.Fields(e.Phrase) {
			if len([]rune(token)) <= m.significantLen {
				continue
			}
			if strings.Contains(normalized, token) {
				return e, true
			}
		}
	}
	return Entry{}, false
}
