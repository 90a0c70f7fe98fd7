package intelligence

import (
	"sort"
	"time"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Retention defaults.
const (
	DefaultMaxAge       = 90 * 24 * time.Hour
	DefaultMinRelevance = 0.1
	DefaultMaxEntries   = 1000
)

// RetentionOptions are the three bounds a cleanup enforces.
type RetentionOptions struct {
	// MaxAge evicts entries not accessed within this window. Zero disables it.
	MaxAge time.Duration

	// MinRelevance evicts entries scoring below it that were never reinforced.
	MinRelevance float64

	// MaxEntries caps the survivors. Negative disables the cap.
	MaxEntries int
}

// RetentionPlan lists the ids to delete, grouped by the bound that selected
// them. Each id appears in exactly one group.
type RetentionPlan struct {
	Expired      []string
	LowRelevance []string
	Overflow     []string

	// Kept is the number of entries that survive the plan.
	Kept int
}

// IDs returns every id in the plan: expired, then low relevance, then overflow.
func (p RetentionPlan) IDs() []string {
	ids := make([]string, 0, p.Total())
	ids = append(ids, p.Expired...)
	ids = append(ids, p.LowRelevance...)
	return append(ids, p.Overflow...)
}

// Total returns the number of ids in the plan.
func (p RetentionPlan) Total() int {
	return len(p.Expired) + len(p.LowRelevance) + len(p.Overflow)
}

// RetentionPolicy decides which entries of a scope survive a cleanup.
type RetentionPolicy struct {
	scorer *RelevanceScorer
}

// NewRetentionPolicy creates a policy ranking overflow with scorer.
func NewRetentionPolicy(scorer *RelevanceScorer) *RetentionPolicy {
	if scorer == nil {
		scorer = NewRelevanceScorer(DefaultScorerConfig())
	}
	return &RetentionPolicy{scorer: scorer}
}

// Plan selects the entries to delete.
//
// Entries older than MaxAge and entries below MinRelevance with frequency 1
// are selected first. If more than MaxEntries remain, the lowest ranked
// survivors under an empty query are added until exactly MaxEntries remain.
// Nothing else is selected.
func (p *RetentionPolicy) Plan(entries []*storage.Entry, now time.Time, opts RetentionOptions) RetentionPlan {
	var plan RetentionPlan
	survivors := make([]*storage.Entry, 0, len(entries))

	for _, e := range entries {
		switch {
		case opts.MaxAge > 0 && now.Sub(e.LastAccessed) > opts.MaxAge:
			plan.Expired = append(plan.Expired, e.ID)
		case e.RelevanceScore < opts.MinRelevance && e.Frequency <= 1:
			plan.LowRelevance = append(plan.LowRelevance, e.ID)
		default:
			survivors = append(survivors, e)
		}
	}

	sort.Strings(plan.Expired)
	sort.Strings(plan.LowRelevance)

	if opts.MaxEntries >= 0 && len(survivors) > opts.MaxEntries {
		ranked := p.scorer.Rank("", survivors, now)
		excess := ranked[opts.MaxEntries:]
		// Worst first.
		for i := len(excess) - 1; i >= 0; i-- {
			plan.Overflow = append(plan.Overflow, excess[i].Entry.ID)
		}
	}

	plan.Kept = len(survivors) - len(plan.Overflow)
	return plan
}
