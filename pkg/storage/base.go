// Package storage provides the persistence contract for memory entries and the
// types shared by all storage backends.
//
// It defines the MemoryStore interface that every backend (SQLite, PostgreSQL,
// OceanBase/MySQL, in-memory) must satisfy. Stores carry no business logic:
// scoring, clustering and eviction decisions live in the intelligence package.
//
// Consistency: stores do not provide transactional isolation between readers
// and writers of the same scope. A recall that lists a scope while a cleanup
// deletes from it may observe an entry that disappears moments later. Touch
// on such an entry reports false and never re-creates the row.
package storage

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound indicates that no entry with the given id exists in the scope.
var ErrNotFound = errors.New("entry not found")

// ErrUnavailable indicates that the backend is temporarily refusing calls
// (for example because a circuit breaker is open).
var ErrUnavailable = errors.New("store unavailable")

// EntryType is the closed set of memory entry variants.
type EntryType string

const (
	// TypeLog is a raw interaction log entry.
	TypeLog EntryType = "log"

	// TypeSummary is a condensed summary of one or more interactions.
	TypeSummary EntryType = "summary"

	// TypePattern is a persisted observation of recurring behaviour.
	TypePattern EntryType = "pattern"

	// TypeCorrection records that an earlier memory was wrong.
	TypeCorrection EntryType = "correction"

	// TypeGoal declares a goal. Carries Goal.
	TypeGoal EntryType = "goal"

	// TypeGoalProgress records progress on a goal. Carries Goal.
	TypeGoalProgress EntryType = "goal_progress"

	// TypeSessionSummary summarises a session. Carries SessionID.
	TypeSessionSummary EntryType = "session_summary"

	// TypeSessionDecision records a decision taken in a session. Carries SessionID.
	TypeSessionDecision EntryType = "session_decision"
)

// EntryTypes lists every valid EntryType in declaration order.
var EntryTypes = []EntryType{
	TypeLog,
	TypeSummary,
	TypePattern,
	TypeCorrection,
	TypeGoal,
	TypeGoalProgress,
	TypeSessionSummary,
	TypeSessionDecision,
}

// Valid reports whether t is one of the declared variants.
func (t EntryType) Valid() bool {
	for _, v := range EntryTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsGoal reports whether entries of this type carry goal fields.
func (t EntryType) IsGoal() bool {
	return t == TypeGoal || t == TypeGoalProgress
}

// IsSession reports whether entries of this type carry a session id.
func (t EntryType) IsSession() bool {
	return t == TypeSessionSummary || t == TypeSessionDecision
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalPending    GoalStatus = "pending"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalAbandoned  GoalStatus = "abandoned"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalPending, GoalInProgress, GoalCompleted, GoalAbandoned:
		return true
	}
	return false
}

// Goal holds the fields populated for goal and goal_progress entries.
type Goal struct {
	ID      string
	Summary string
	Status  GoalStatus
}

// Scope partitions all memory data. An empty UserID is the agent-global scope.
type Scope struct {
	AgentID string
	UserID  string
}

// Entry is the persisted memory record.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors core.MemoryEntry.
type Entry struct {
	// ID is the opaque identifier, assigned by Put when empty.
	ID string

	// AgentID identifies the owning agent.
	AgentID string

	// UserID narrows the scope to one user (empty for agent-global entries).
	UserID string

	// Type is the entry variant.
	Type EntryType

	// Input is the raw originating text (may be empty for synthesized entries).
	Input string

	// Summary is the condensed description scored against queries.
	Summary string

	// Context is an optional free-text context blob.
	Context string

	// Tags is the normalized tag set.
	Tags []string

	// RelevanceScore is the intrinsic importance in [0,1].
	RelevanceScore float64

	// Frequency counts reinforcements, always >= 1.
	Frequency int

	// Goal is set only for goal and goal_progress entries.
	Goal *Goal

	// SessionID is set only for session_summary and session_decision entries.
	SessionID string

	// CorrectsID is the id of the entry a correction refers to (optional).
	CorrectsID string

	// CreatedAt is when the entry was created.
	CreatedAt time.Time

	// LastAccessed is when the entry was last recalled or reinforced.
	LastAccessed time.Time
}

// Scope returns the scope the entry belongs to.
func (e *Entry) Scope() Scope {
	return Scope{AgentID: e.AgentID, UserID: e.UserID}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	if e.Goal != nil {
		g := *e.Goal
		c.Goal = &g
	}
	return &c
}

// DeleteBatchResult reports the outcome of a best-effort batch delete.
type DeleteBatchResult struct {
	// Deleted lists the ids that were removed.
	Deleted []string

	// Missing lists the ids that did not exist in the scope.
	Missing []string

	// Failed maps ids whose deletion failed to the failure.
	Failed map[string]error
}

// FailedIDs returns the ids in Failed, in the order they were requested.
func (r *DeleteBatchResult) FailedIDs(requested []string) []string {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Failed))
	for _, id := range requested {
		if _, ok := r.Failed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// MemoryStore defines the interface for memory storage backends.
//
// All implementations (SQLite, PostgreSQL, OceanBase, in-memory) must implement
// this interface. Every call may block on I/O.
type MemoryStore interface {
	// Put inserts or replaces an entry. If entry.ID is empty a new id is
	// assigned and written back to the entry. Returns the id.
	Put(ctx context.Context, entry *Entry) (string, error)

	// Get retrieves an entry by id within the scope.
	// Returns ErrNotFound if it does not exist or belongs to another scope.
	Get(ctx context.Context, scope Scope, id string) (*Entry, error)

	// ListByScope returns a lazy sequence over every entry of the scope.
	// Ordering is unspecified. Ranging over the sequence again re-reads the
	// store. A read failure is yielded as a non-nil error.
	ListByScope(ctx context.Context, scope Scope) iter.Seq2[*Entry, error]

	// ListScopes returns every distinct scope holding entries of the agent.
	ListScopes(ctx context.Context, agentID string) ([]Scope, error)

	// Touch increments the entry's frequency and moves LastAccessed forward
	// to at. Returns false if the entry does not exist.
	Touch(ctx context.Context, scope Scope, id string, at time.Time) (bool, error)

	// Delete removes an entry. Returns true if an entry was removed.
	Delete(ctx context.Context, scope Scope, id string) (bool, error)

	// DeleteBatch removes the given ids on a best-effort basis. The returned
	// error is non-nil only when no attempt could be made at all.
	DeleteBatch(ctx context.Context, scope Scope, ids []string) (*DeleteBatchResult, error)

	// Close closes the store and releases resources.
	Close() error
}

// Collect drains a ListByScope sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*Entry, error]) ([]*Entry, error) {
	var entries []*Entry
	for entry, err := range seq {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
