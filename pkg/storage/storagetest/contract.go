// Package storagetest holds the behaviour every storage.MemoryStore must show.
// Backend test files call Run with a factory for a fresh, empty store.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Factory returns an empty store and a cleanup function.
type Factory func(t *testing.T) (storage.MemoryStore, func())

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.MemoryStore)
	}{
		{"PutGetRoundTrip", testPutGetRoundTrip},
		{"PutAssignsID", testPutAssignsID},
		{"GetOutOfScope", testGetOutOfScope},
		{"ListByScopeRestartable", testListByScopeRestartable},
		{"ListScopes", testListScopes},
		{"Touch", testTouch},
		{"TouchDeleted", testTouchDeleted},
		{"Delete", testDelete},
		{"DeleteBatch", testDeleteBatch},
		{"FindBySummary", testFindBySummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := newStore(t)
			defer cleanup()
			tt.fn(t, store)
		})
	}
}

var (
	base     = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	scopeA   = storage.Scope{AgentID: "agent-1", UserID: "alice"}
	scopeB   = storage.Scope{AgentID: "agent-1", UserID: "bob"}
	scopeAll = storage.Scope{AgentID: "agent-1"}
)

func newEntry(scope storage.Scope, id, summary string) *storage.Entry {
	return &storage.Entry{
		ID:             id,
		AgentID:        scope.AgentID,
		UserID:         scope.UserID,
		Type:           storage.TypeSummary,
		Summary:        summary,
		RelevanceScore: 0.5,
		Frequency:      1,
		CreatedAt:      base,
		LastAccessed:   base,
	}
}

func testPutGetRoundTrip(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	entry := &storage.Entry{
		ID:             "0000000000000000001",
		AgentID:        scopeA.AgentID,
		UserID:         scopeA.UserID,
		Type:           storage.TypeGoalProgress,
		Input:          "finished chapter two",
		Summary:        "Reading progress on the Go book",
		Context:        "evening session",
		Tags:           []string{"Reading", " go ", "reading"},
		RelevanceScore: 0.75,
		Frequency:      3,
		Goal:           &storage.Goal{ID: "g-1", Summary: "Read the Go book", Status: storage.GoalInProgress},
		CreatedAt:      base,
		LastAccessed:   base.Add(time.Hour),
	}

	id, err := store.Put(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000001", id)

	got, err := store.Get(ctx, scopeA, id)
	require.NoError(t, err)
	assert.Equal(t, entry.Type, got.Type)
	assert.Equal(t, entry.Input, got.Input)
	assert.Equal(t, entry.Summary, got.Summary)
	assert.Equal(t, entry.Context, got.Context)
	assert.Equal(t, []string{"go", "reading"}, got.Tags)
	assert.InDelta(t, 0.75, got.RelevanceScore, 1e-9)
	assert.Equal(t, 3, got.Frequency)
	require.NotNil(t, got.Goal)
	assert.Equal(t, *entry.Goal, *got.Goal)
	assert.Empty(t, got.SessionID)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, entry.LastAccessed.Equal(got.LastAccessed))
}

func testPutAssignsID(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	first := newEntry(scopeA, "", "first")
	second := newEntry(scopeA, "", "second")

	id1, err := store.Put(ctx, first)
	require.NoError(t, err)
	id2, err := store.Put(ctx, second)
	require.NoError(t, err)

	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, first.ID)
	assert.NotEqual(t, id1, id2)
	assert.Less(t, id1, id2)
}

func testGetOutOfScope(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, newEntry(scopeA, "0000000000000000010", "private"))
	require.NoError(t, err)

	_, err = store.Get(ctx, scopeB, "0000000000000000010")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Get(ctx, scopeA, "0000000000000000099")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListByScopeRestartable(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	for _, e := range []*storage.Entry{
		newEntry(scopeA, "0000000000000000001", "one"),
		newEntry(scopeA, "0000000000000000002", "two"),
		newEntry(scopeB, "0000000000000000003", "three"),
		newEntry(scopeAll, "0000000000000000004", "global"),
	} {
		_, err := store.Put(ctx, e)
		require.NoError(t, err)
	}

	seq := store.ListByScope(ctx, scopeA)

	first, err := storage.Collect(seq)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	_, err = store.Put(ctx, newEntry(scopeA, "0000000000000000005", "five"))
	require.NoError(t, err)

	second, err := storage.Collect(seq)
	require.NoError(t, err)
	assert.Len(t, second, 3)

	global, err := storage.Collect(store.ListByScope(ctx, scopeAll))
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "global", global[0].Summary)

	empty, err := storage.Collect(store.ListByScope(ctx, storage.Scope{AgentID: "nobody"}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testListScopes(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	for _, e := range []*storage.Entry{
		newEntry(scopeB, "0000000000000000001", "b"),
		newEntry(scopeA, "0000000000000000002", "a"),
		newEntry(scopeAll, "0000000000000000003", "global"),
		newEntry(storage.Scope{AgentID: "agent-2"}, "0000000000000000004", "other"),
	} {
		_, err := store.Put(ctx, e)
		require.NoError(t, err)
	}

	scopes, err := store.ListScopes(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, []storage.Scope{scopeAll, scopeA, scopeB}, scopes)
}

func testTouch(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, newEntry(scopeA, "0000000000000000001", "touched"))
	require.NoError(t, err)

	later := base.Add(48 * time.Hour)
	ok, err := store.Touch(ctx, scopeA, "0000000000000000001", later)
	require.NoError(t, err)
	assert.True(t, ok)

	// An older timestamp bumps frequency but never moves LastAccessed back.
	ok, err = store.Touch(ctx, scopeA, "0000000000000000001", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, scopeA, "0000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Frequency)
	assert.True(t, later.Equal(got.LastAccessed), "last accessed %s", got.LastAccessed)

	ok, err = store.Touch(ctx, scopeB, "0000000000000000001", later)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testTouchDeleted(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, newEntry(scopeA, "0000000000000000001", "gone"))
	require.NoError(t, err)

	removed, err := store.Delete(ctx, scopeA, "0000000000000000001")
	require.NoError(t, err)
	require.True(t, removed)

	ok, err := store.Touch(ctx, scopeA, "0000000000000000001", base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, scopeA, "0000000000000000001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDelete(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, newEntry(scopeA, "0000000000000000001", "doomed"))
	require.NoError(t, err)

	removed, err := store.Delete(ctx, scopeB, "0000000000000000001")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = store.Delete(ctx, scopeA, "0000000000000000001")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, scopeA, "0000000000000000001")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testDeleteBatch(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	for _, id := range []string{"0000000000000000001", "0000000000000000002", "0000000000000000003"} {
		_, err := store.Put(ctx, newEntry(scopeA, id, "batch "+id))
		require.NoError(t, err)
	}

	result, err := store.DeleteBatch(ctx, scopeA, []string{
		"0000000000000000001", "0000000000000000003", "0000000000000000042",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0000000000000000001", "0000000000000000003"}, result.Deleted)
	assert.Equal(t, []string{"0000000000000000042"}, result.Missing)
	assert.Empty(t, result.Failed)

	left, err := storage.Collect(store.ListByScope(ctx, scopeA))
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "0000000000000000002", left[0].ID)
}

func testFindBySummary(t *testing.T, store storage.MemoryStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, newEntry(scopeA, "0000000000000000001", "Prefers  Dark Mode"))
	require.NoError(t, err)
	_, err = store.Put(ctx, newEntry(scopeA, "0000000000000000002", "prefers light mode"))
	require.NoError(t, err)
	_, err = store.Put(ctx, newEntry(scopeB, "0000000000000000003", "prefers dark mode"))
	require.NoError(t, err)

	found, err := storage.FindBySummary(ctx, store, scopeA, "prefers dark mode")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "0000000000000000001", found[0].ID)
}
