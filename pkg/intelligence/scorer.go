// Package intelligence holds the pure decision logic of the engine: relevance
// scoring, pattern detection, retention planning, importance evaluation and
// near-duplicate detection. Nothing in this package performs I/O.
package intelligence

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Default scoring weights and recency half-life.
const (
	DefaultOverlapWeight   = 0.5
	DefaultRecencyWeight   = 0.3
	DefaultIntrinsicWeight = 0.2
	DefaultHalfLife        = 14 * 24 * time.Hour
)

// ScorerConfig holds the tunable parameters of RelevanceScorer.
type ScorerConfig struct {
	// OverlapWeight scales the query/entry token overlap ratio.
	OverlapWeight float64

	// RecencyWeight scales the exponential recency decay.
	RecencyWeight float64

	// IntrinsicWeight scales the entry's stored relevance score.
	IntrinsicWeight float64

	// HalfLife is the age at which the recency term halves.
	HalfLife time.Duration
}

// DefaultScorerConfig returns the 0.5/0.3/0.2 weighting with a 14 day half-life.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		OverlapWeight:   DefaultOverlapWeight,
		RecencyWeight:   DefaultRecencyWeight,
		IntrinsicWeight: DefaultIntrinsicWeight,
		HalfLife:        DefaultHalfLife,
	}
}

// RelevanceScorer computes how relevant an entry is to a query at a given time.
//
// The score is
//
//	OverlapWeight*overlap + RecencyWeight*0.5^(age/HalfLife) + IntrinsicWeight*relevance
//
// clamped to [0,1], where overlap is the share of query tokens found in the
// entry's summary or tags and age is measured from LastAccessed.
type RelevanceScorer struct {
	cfg ScorerConfig
}

// NewRelevanceScorer creates a scorer. A config with all weights zero gets the
// default weights, and a non-positive half-life gets DefaultHalfLife.
func NewRelevanceScorer(cfg ScorerConfig) *RelevanceScorer {
	if cfg.OverlapWeight == 0 && cfg.RecencyWeight == 0 && cfg.IntrinsicWeight == 0 {
		cfg.OverlapWeight = DefaultOverlapWeight
		cfg.RecencyWeight = DefaultRecencyWeight
		cfg.IntrinsicWeight = DefaultIntrinsicWeight
	}
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = DefaultHalfLife
	}
	return &RelevanceScorer{cfg: cfg}
}

// Config returns the effective configuration.
func (s *RelevanceScorer) Config() ScorerConfig {
	return s.cfg
}

// Score returns the relevance of entry to query at now.
func (s *RelevanceScorer) Score(query string, entry *storage.Entry, now time.Time) float64 {
	return s.score(Tokenize(query), entry, now)
}

func (s *RelevanceScorer) score(queryTokens []string, entry *storage.Entry, now time.Time) float64 {
	score := s.cfg.OverlapWeight*Overlap(queryTokens, entry) +
		s.cfg.RecencyWeight*s.Recency(entry, now) +
		s.cfg.IntrinsicWeight*clamp01(entry.RelevanceScore)
	return clamp01(score)
}

// Recency returns 0.5^(age/HalfLife), where age is the time since the entry
// was last accessed. Future timestamps count as age zero.
func (s *RelevanceScorer) Recency(entry *storage.Entry, now time.Time) float64 {
	age := now.Sub(entry.LastAccessed)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(s.cfg.HalfLife))
}

// Overlap returns |Q ∩ D| / |Q| where Q is the query token set and D the
// token set of the entry's summary and tags. It is 0 when either the query
// tokens or the summary are empty.
func Overlap(queryTokens []string, entry *storage.Entry) float64 {
	if len(queryTokens) == 0 || strings.TrimSpace(entry.Summary) == "" {
		return 0
	}

	doc := make(map[string]struct{})
	for _, tok := range Tokenize(entry.Summary) {
		doc[tok] = struct{}{}
	}
	for _, tag := range entry.Tags {
		for _, tok := range Tokenize(tag) {
			doc[tok] = struct{}{}
		}
	}

	hits := 0
	for _, tok := range queryTokens {
		if _, ok := doc[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// Scored pairs an entry with its score.
type Scored struct {
	Entry *storage.Entry
	Score float64
}

// Rank scores every entry against query and returns them best first.
func (s *RelevanceScorer) Rank(query string, entries []*storage.Entry, now time.Time) []Scored {
	tokens := Tokenize(query)
	scored := make([]Scored, len(entries))
	for i, e := range entries {
		scored[i] = Scored{Entry: e, Score: s.score(tokens, e, now)}
	}
	SortScored(scored)
	return scored
}

// SortScored orders scored entries best first: higher score, then higher
// frequency, then more recent LastAccessed, then lower id.
func SortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return RanksBefore(scored[i], scored[j])
	})
}

// RanksBefore reports whether a ranks strictly ahead of b.
func RanksBefore(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Entry.Frequency != b.Entry.Frequency {
		return a.Entry.Frequency > b.Entry.Frequency
	}
	if !a.Entry.LastAccessed.Equal(b.Entry.LastAccessed) {
		return a.Entry.LastAccessed.After(b.Entry.LastAccessed)
	}
	return a.Entry.ID < b.Entry.ID
}

// Tokenize lower-cases text, splits it on anything that is not a letter or
// digit and drops stop-words. Each token appears once, in first-seen order.
func Tokenize(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, word := range words(text) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}
	return tokens
}

// words splits lower-cased text on non letter/digit runes.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "am": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {},
	"before": {}, "being": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "doing": {}, "for": {}, "from": {},
	"had": {}, "has": {}, "have": {}, "having": {}, "he": {}, "her": {},
	"here": {}, "hers": {}, "him": {}, "his": {}, "how": {}, "i": {}, "if": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "just": {}, "me": {},
	"more": {}, "most": {}, "my": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "ours": {}, "out": {}, "over": {}, "she": {}, "so": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"those": {}, "to": {}, "too": {}, "up": {}, "us": {}, "very": {}, "was": {},
	"we": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "who": {}, "whom": {}, "why": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {}, "yours": {},
}
