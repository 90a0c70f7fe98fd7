package core

import (
	"time"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// EntryType is the closed set of memory entry variants.
type EntryType = storage.EntryType

// Entry types.
const (
	TypeLog             = storage.TypeLog
	TypeSummary         = storage.TypeSummary
	TypePattern         = storage.TypePattern
	TypeCorrection      = storage.TypeCorrection
	TypeGoal            = storage.TypeGoal
	TypeGoalProgress    = storage.TypeGoalProgress
	TypeSessionSummary  = storage.TypeSessionSummary
	TypeSessionDecision = storage.TypeSessionDecision
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus = storage.GoalStatus

// Goal statuses.
const (
	GoalPending    = storage.GoalPending
	GoalInProgress = storage.GoalInProgress
	GoalCompleted  = storage.GoalCompleted
	GoalAbandoned  = storage.GoalAbandoned
)

// Goal carries the goal fields of goal and goal_progress entries.
type Goal struct {
	ID      string     `json:"id"`
	Summary string     `json:"summary"`
	Status  GoalStatus `json:"status"`
}

// MemoryEntry is the unit of persisted knowledge.
//
// Which optional fields may be set depends on Type:
//   - Goal is required for goal and goal_progress entries and forbidden otherwise
//   - SessionID is required for session_summary and session_decision entries and forbidden otherwise
//   - CorrectsID is only allowed on correction entries
//
// Example:
//
//	entry := &core.MemoryEntry{
//	    AgentID: "support-bot",
//	    UserID:  "user_001",
//	    Type:    core.TypeSummary,
//	    Summary: "User cannot reset their password",
//	    Tags:    []string{"account"},
//	}
type MemoryEntry struct {
	// ID is the opaque identifier, assigned on Add when empty.
	ID string `json:"id"`

	// AgentID identifies the owning agent. Required.
	AgentID string `json:"agentId"`

	// UserID narrows the scope to one user. Empty means agent-global.
	UserID string `json:"userId,omitempty"`

	// Type is the entry variant.
	Type EntryType `json:"type"`

	// Input is the raw originating text.
	Input string `json:"input,omitempty"`

	// Summary is the condensed description scored against queries.
	Summary string `json:"summary"`

	// Context is an optional free-text context blob.
	Context string `json:"context,omitempty"`

	// Tags drive pattern clustering and query overlap.
	Tags []string `json:"tags"`

	// RelevanceScore is the intrinsic importance in [0,1].
	RelevanceScore float64 `json:"relevanceScore"`

	// Frequency counts reinforcements, always >= 1 once stored.
	Frequency int `json:"frequency"`

	Goal       *Goal  `json:"goal,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	CorrectsID string `json:"correctsId,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// ScoredEntry is a recalled entry with its relevance score.
type ScoredEntry struct {
	MemoryEntry
	Score float64 `json:"score"`
}

// MemoryPattern is a recurring topic among recalled entries. It is derived
// on demand and never persisted.
type MemoryPattern struct {
	// Pattern is the shared tag.
	Pattern string `json:"pattern"`

	// Frequency is the number of entries sharing the tag.
	Frequency int `json:"frequency"`

	// LastSeen is the latest LastAccessed in the cluster.
	LastSeen time.Time `json:"lastSeen"`

	// Examples are up to three member summaries, most recent first.
	Examples []string `json:"examples"`

	// Corrections are summaries of linked correction entries.
	Corrections []string `json:"corrections,omitempty"`
}

// RecallResult is the outcome of Recall.
type RecallResult struct {
	// Entries are the ranked top matches, at most limit of them.
	Entries []ScoredEntry `json:"entries"`

	// Patterns are computed over all matches, not only the returned page.
	Patterns []MemoryPattern `json:"patterns"`

	// TotalMatches counts every entry that passed the filters.
	TotalMatches int `json:"totalMatches"`

	// AverageRelevance is the mean score over all matches.
	AverageRelevance float64 `json:"averageRelevance"`
}

// CleanupResult is the outcome of Cleanup.
type CleanupResult struct {
	// DeletedCount is the number of entries removed.
	DeletedCount int `json:"deletedCount"`

	// FailedIDs lists entries selected for deletion that could not be deleted.
	FailedIDs []string `json:"failedIds,omitempty"`

	// Expired, LowRelevance and Overflow break DeletedCount down by the
	// bound that selected each entry.
	Expired      int `json:"expired"`
	LowRelevance int `json:"lowRelevance"`
	Overflow     int `json:"overflow"`

	// Scopes is the number of scopes visited.
	Scopes int `json:"scopes"`
}

// RecentActivity counts entries by last access.
type RecentActivity struct {
	Last24h    int        `json:"last24h"`
	Last7d     int        `json:"last7d"`
	Last30d    int        `json:"last30d"`
	MostRecent *time.Time `json:"mostRecent,omitempty"`
}

// Stats is a read-only summary of a scope.
type Stats struct {
	TotalEntries     int               `json:"totalEntries"`
	ByType           map[EntryType]int `json:"byType"`
	AverageRelevance float64           `json:"averageRelevance"`
	TopPatterns      []MemoryPattern   `json:"topPatterns"`
	RecentActivity   RecentActivity    `json:"recentActivity"`
}

// DeleteResult reports a delete-by-id.
type DeleteResult struct {
	Success bool `json:"success"`
}
