package core

import (
	"github.com/oceanbase/recallmem-go/pkg/intelligence"
	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// toStorageEntry converts a core.MemoryEntry to storage.Entry.
func toStorageEntry(m *MemoryEntry) *storage.Entry {
	e := &storage.Entry{
		ID:             m.ID,
		AgentID:        m.AgentID,
		UserID:         m.UserID,
		Type:           m.Type,
		Input:          m.Input,
		Summary:        m.Summary,
		Context:        m.Context,
		Tags:           append([]string(nil), m.Tags...),
		RelevanceScore: m.RelevanceScore,
		Frequency:      m.Frequency,
		SessionID:      m.SessionID,
		CorrectsID:     m.CorrectsID,
		CreatedAt:      m.CreatedAt,
		LastAccessed:   m.LastAccessed,
	}
	if m.Goal != nil {
		e.Goal = &storage.Goal{ID: m.Goal.ID, Summary: m.Goal.Summary, Status: m.Goal.Status}
	}
	return e
}

// fromStorageEntry converts a storage.Entry to core.MemoryEntry.
func fromStorageEntry(e *storage.Entry) *MemoryEntry {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)

	m := &MemoryEntry{
		ID:             e.ID,
		AgentID:        e.AgentID,
		UserID:         e.UserID,
		Type:           e.Type,
		Input:          e.Input,
		Summary:        e.Summary,
		Context:        e.Context,
		Tags:           tags,
		RelevanceScore: e.RelevanceScore,
		Frequency:      e.Frequency,
		SessionID:      e.SessionID,
		CorrectsID:     e.CorrectsID,
		CreatedAt:      e.CreatedAt,
		LastAccessed:   e.LastAccessed,
	}
	if e.Goal != nil {
		m.Goal = &Goal{ID: e.Goal.ID, Summary: e.Goal.Summary, Status: e.Goal.Status}
	}
	return m
}

// fromPatterns converts detected patterns to their public form.
func fromPatterns(patterns []intelligence.Pattern) []MemoryPattern {
	out := make([]MemoryPattern, len(patterns))
	for i, p := range patterns {
		out[i] = MemoryPattern{
			Pattern:     p.Label,
			Frequency:   p.Frequency,
			LastSeen:    p.LastSeen,
			Examples:    p.Examples,
			Corrections: p.Corrections,
		}
	}
	return out
}
