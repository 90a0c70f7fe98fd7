package core

import (
	"math"
	"strings"
)

// validateEntry checks the per-variant field rules of an entry about to be
// written.
func validateEntry(m *MemoryEntry) error {
	if m == nil {
		return invalid("entry", "is nil")
	}
	if strings.TrimSpace(m.AgentID) == "" {
		return invalid("agentId", "is required")
	}
	if !m.Type.Valid() {
		return invalid("type", "unknown entry type %q", m.Type)
	}
	if strings.TrimSpace(m.Summary) == "" && strings.TrimSpace(m.Input) == "" {
		return invalid("summary", "summary or input is required")
	}
	if math.IsNaN(m.RelevanceScore) || m.RelevanceScore < 0 || m.RelevanceScore > 1 {
		return invalid("relevanceScore", "must be within [0,1], got %v", m.RelevanceScore)
	}
	if m.Frequency < 0 {
		return invalid("frequency", "must not be negative")
	}
	if !m.CreatedAt.IsZero() && !m.LastAccessed.IsZero() && m.LastAccessed.Before(m.CreatedAt) {
		return invalid("lastAccessed", "precedes createdAt")
	}

	if m.Type.IsGoal() {
		if m.Goal == nil {
			return invalid("goal", "is required for %s entries", m.Type)
		}
		if !m.Goal.Status.Valid() {
			return invalid("goal.status", "unknown status %q", m.Goal.Status)
		}
	} else if m.Goal != nil {
		return invalid("goal", "is not allowed on %s entries", m.Type)
	}

	if m.Type.IsSession() {
		if strings.TrimSpace(m.SessionID) == "" {
			return invalid("sessionId", "is required for %s entries", m.Type)
		}
	} else if m.SessionID != "" {
		return invalid("sessionId", "is not allowed on %s entries", m.Type)
	}

	if m.CorrectsID != "" {
		if m.Type != TypeCorrection {
			return invalid("correctsId", "is only allowed on correction entries")
		}
		if m.CorrectsID == m.ID {
			return invalid("correctsId", "an entry cannot correct itself")
		}
	}

	return nil
}

func validateAgentID(agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return invalid("agentId", "is required")
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "is required")
	}
	return nil
}

func validateFraction(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalid(field, "must be within [0,1], got %v", v)
	}
	return nil
}

func (o *RecallOptions) validate() error {
	if o.Limit <= 0 {
		return invalid("limit", "must be positive, got %d", o.Limit)
	}
	if err := validateFraction("minRelevance", o.MinRelevance); err != nil {
		return err
	}
	for _, t := range o.Types {
		if !t.Valid() {
			return invalid("types", "unknown entry type %q", t)
		}
	}
	return nil
}

func (o *CleanupOptions) validate() error {
	if o.MaxAgeDays <= 0 {
		return invalid("maxAge", "must be a positive number of days, got %d", o.MaxAgeDays)
	}
	if err := validateFraction("minRelevance", o.MinRelevance); err != nil {
		return err
	}
	if o.MaxEntries < 0 {
		return invalid("maxEntries", "must not be negative, got %d", o.MaxEntries)
	}
	return nil
}
