package intelligence

import (
	"sort"
	"strings"
	"time"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Pattern defaults.
const (
	DefaultPatternMinFrequency = 2
	DefaultPatternMaxExamples  = 3
	DefaultMaxCorrections      = 3
)

// Pattern is a recurring topic derived from entries sharing a tag.
type Pattern struct {
	// Label is the shared tag.
	Label string

	// Frequency is the number of entries in the cluster.
	Frequency int

	// LastSeen is the latest LastAccessed among the cluster's entries.
	LastSeen time.Time

	// Examples holds member summaries, most recent first.
	Examples []string

	// Corrections holds summaries of correction entries linked to the cluster,
	// most recent first.
	Corrections []string
}

// PatternConfig bounds pattern detection.
type PatternConfig struct {
	// MinFrequency is the smallest cluster size reported.
	MinFrequency int

	// MaxExamples caps Pattern.Examples.
	MaxExamples int

	// MaxCorrections caps Pattern.Corrections.
	MaxCorrections int
}

// PatternDetector clusters entries by exact tag.
type PatternDetector struct {
	cfg PatternConfig
}

// NewPatternDetector creates a detector. Non-positive limits take defaults.
func NewPatternDetector(cfg PatternConfig) *PatternDetector {
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = DefaultPatternMinFrequency
	}
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = DefaultPatternMaxExamples
	}
	if cfg.MaxCorrections <= 0 {
		cfg.MaxCorrections = DefaultMaxCorrections
	}
	return &PatternDetector{cfg: cfg}
}

// Detect groups entries by tag and returns the clusters holding at least
// MinFrequency entries, ordered by frequency, then LastSeen, then label.
//
// Correction entries never count as members. A correction from corrections
// is attached to a cluster when it carries the cluster's tag or when it
// corrects one of the cluster's members.
func (d *PatternDetector) Detect(entries, corrections []*storage.Entry) []Pattern {
	clusters := make(map[string][]*storage.Entry)
	for _, e := range entries {
		if e.Type == storage.TypeCorrection {
			continue
		}
		for _, tag := range storage.NormalizeTags(e.Tags) {
			clusters[tag] = append(clusters[tag], e)
		}
	}

	corrections = byRecency(corrections)

	var patterns []Pattern
	for label, members := range clusters {
		if len(members) < d.cfg.MinFrequency {
			continue
		}
		members = byRecency(members)

		p := Pattern{
			Label:     label,
			Frequency: len(members),
			LastSeen:  members[0].LastAccessed,
		}

		for _, m := range members {
			if len(p.Examples) == d.cfg.MaxExamples {
				break
			}
			if strings.TrimSpace(m.Summary) != "" {
				p.Examples = append(p.Examples, m.Summary)
			}
		}

		p.Corrections = d.linkCorrections(label, members, corrections)
		patterns = append(patterns, p)
	}

	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Label < b.Label
	})

	return patterns
}

func (d *PatternDetector) linkCorrections(label string, members, corrections []*storage.Entry) []string {
	if len(corrections) == 0 {
		return nil
	}

	memberIDs := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberIDs[m.ID] = struct{}{}
	}

	var linked []string
	for _, c := range corrections {
		if len(linked) == d.cfg.MaxCorrections {
			break
		}
		if c.Type != storage.TypeCorrection || strings.TrimSpace(c.Summary) == "" {
			continue
		}
		_, corrects := memberIDs[c.CorrectsID]
		if corrects || hasTag(c, label) {
			linked = append(linked, c.Summary)
		}
	}
	return linked
}

func hasTag(e *storage.Entry, tag string) bool {
	for _, t := range storage.NormalizeTags(e.Tags) {
		if t == tag {
			return true
		}
	}
	return false
}

// byRecency returns a copy of entries sorted by LastAccessed descending,
// then id ascending.
func byRecency(entries []*storage.Entry) []*storage.Entry {
	out := append([]*storage.Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].LastAccessed.After(out[j].LastAccessed)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
