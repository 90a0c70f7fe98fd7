package intelligence

import "github.com/oceanbase/recallmem-go/pkg/storage"

// DefaultDuplicateThreshold is the token Jaccard similarity at which two
// summaries are treated as the same memory.
const DefaultDuplicateThreshold = 0.9

// DedupManager detects near-duplicate entries so that a repeated memory
// reinforces the existing entry instead of being stored again.
//
// Example usage:
//
//	manager := NewDedupManager(0.9)
//	if dup, _ := manager.CheckDuplicate(candidate, existing); dup != nil {
//	    // Touch dup instead of inserting candidate
//	}
type DedupManager struct {
	// threshold is the similarity threshold for duplicate detection.
	// Entries with similarity >= threshold are considered duplicates.
	threshold float64
}

// NewDedupManager creates a new deduplication manager. A threshold outside
// (0,1] defaults to DefaultDuplicateThreshold.
func NewDedupManager(threshold float64) *DedupManager {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDuplicateThreshold
	}
	return &DedupManager{threshold: threshold}
}

// Threshold returns the effective similarity threshold.
func (m *DedupManager) Threshold() float64 {
	return m.threshold
}

// CheckDuplicate returns the most similar entry among existing that shares
// the candidate's scope and type and reaches the threshold, together with its
// similarity. It returns nil when there is none. Ties go to the lower id.
func (m *DedupManager) CheckDuplicate(candidate *storage.Entry, existing []*storage.Entry) (*storage.Entry, float64) {
	want := Tokenize(candidate.Summary)
	if len(want) == 0 {
		return nil, 0
	}

	var best *storage.Entry
	bestSim := 0.0
	for _, e := range existing {
		if e.Type != candidate.Type || e.Scope() != candidate.Scope() || e.ID == candidate.ID {
			continue
		}
		sim := Similarity(want, Tokenize(e.Summary))
		if sim < m.threshold {
			continue
		}
		if best == nil || sim > bestSim || (sim == bestSim && e.ID < best.ID) {
			best, bestSim = e, sim
		}
	}
	return best, bestSim
}

// Similarity returns the Jaccard index of two token sets.
func Similarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
