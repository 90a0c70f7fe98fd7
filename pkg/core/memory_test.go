package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oceanbase/recallmem-go/pkg/core"
	"github.com/oceanbase/recallmem-go/pkg/intelligence"
	"github.com/oceanbase/recallmem-go/pkg/metrics"
	"github.com/oceanbase/recallmem-go/pkg/storage"
	"github.com/oceanbase/recallmem-go/pkg/storage/inmemory"
)

const agent = "support-bot"

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// faultyStore wraps a MemoryStore and injects failures.
type faultyStore struct {
	storage.MemoryStore

	mu         sync.Mutex
	calls      atomic.Int64
	failList   error
	failTouch  error
	failDelete map[string]error
	ghosts     []*storage.Entry
	onDelete   func(id string)
}

func newFaultyStore(t *testing.T) *faultyStore {
	t.Helper()
	inner, err := inmemory.NewStore(1)
	require.NoError(t, err)
	return &faultyStore{MemoryStore: inner, failDelete: make(map[string]error)}
}

func (f *faultyStore) Put(ctx context.Context, e *storage.Entry) (string, error) {
	f.calls.Add(1)
	return f.MemoryStore.Put(ctx, e)
}

func (f *faultyStore) Get(ctx context.Context, scope storage.Scope, id string) (*storage.Entry, error) {
	f.calls.Add(1)
	return f.MemoryStore.Get(ctx, scope, id)
}

func (f *faultyStore) ListByScope(ctx context.Context, scope storage.Scope) iter.Seq2[*storage.Entry, error] {
	f.calls.Add(1)
	return func(yield func(*storage.Entry, error) bool) {
		if f.failList != nil {
			yield(nil, f.failList)
			return
		}
		for e, err := range f.MemoryStore.ListByScope(ctx, scope) {
			if !yield(e, err) || err != nil {
				return
			}
		}
		for _, g := range f.ghosts {
			if g.Scope() == scope && !yield(g.Clone(), nil) {
				return
			}
		}
	}
}

func (f *faultyStore) ListScopes(ctx context.Context, agentID string) ([]storage.Scope, error) {
	f.calls.Add(1)
	return f.MemoryStore.ListScopes(ctx, agentID)
}

func (f *faultyStore) Touch(ctx context.Context, scope storage.Scope, id string, at time.Time) (bool, error) {
	f.calls.Add(1)
	if f.failTouch != nil {
		return false, f.failTouch
	}
	return f.MemoryStore.Touch(ctx, scope, id, at)
}

func (f *faultyStore) Delete(ctx context.Context, scope storage.Scope, id string) (bool, error) {
	f.calls.Add(1)
	f.mu.Lock()
	err := f.failDelete[id]
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	removed, err := f.MemoryStore.Delete(ctx, scope, id)
	if f.onDelete != nil {
		f.onDelete(id)
	}
	return removed, err
}

func (f *faultyStore) DeleteBatch(ctx context.Context, scope storage.Scope, ids []string) (*storage.DeleteBatchResult, error) {
	return storage.DeleteEach(ctx, scope, ids, f.Delete), nil
}

func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Store = core.StoreConfig{Provider: core.ProviderMemory}
	return cfg
}

func newTestClient(t *testing.T, store storage.MemoryStore, opts ...core.ClientOption) *core.Client {
	t.Helper()
	return newTestClientWithConfig(t, testConfig(), store, opts...)
}

func newTestClientWithConfig(t *testing.T, cfg *core.Config, store storage.MemoryStore, opts ...core.ClientOption) *core.Client {
	t.Helper()
	if store == nil {
		s, err := inmemory.NewStore(1)
		require.NoError(t, err)
		store = s
	}
	opts = append([]core.ClientOption{core.WithClock(intelligence.NewFixedClock(now))}, opts...)
	client, err := core.NewClientWithStore(cfg, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// seed adds an entry last accessed age ago.
func seed(t *testing.T, client *core.Client, e core.MemoryEntry, age time.Duration) *core.MemoryEntry {
	t.Helper()
	if e.AgentID == "" {
		e.AgentID = agent
	}
	if e.Type == "" {
		e.Type = core.TypeSummary
	}
	e.CreatedAt = now.Add(-age)
	e.LastAccessed = now.Add(-age)
	stored, err := client.Add(context.Background(), &e)
	require.NoError(t, err)
	return stored
}

func TestRecall_RanksByRelevance(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	reset := seed(t, client, core.MemoryEntry{Summary: "How to reset password", Tags: []string{"account"}}, 0)
	seed(t, client, core.MemoryEntry{Summary: "Invoice question", Tags: []string{"billing"}}, 0)

	result, err := client.Recall(ctx, agent, "reset password", core.WithMinRelevance(0))
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	assert.Equal(t, reset.ID, result.Entries[0].ID)
	assert.Greater(t, result.Entries[0].Score, result.Entries[1].Score)
}

func TestRecall_PatternsCoverAllMatches(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seed(t, client, core.MemoryEntry{
			Summary:        "Billing question " + string(rune('a'+i)),
			Tags:           []string{"billing"},
			RelevanceScore: 0.5,
		}, days(i))
	}

	result, err := client.Recall(ctx, agent, "billing", core.WithLimit(1))
	require.NoError(t, err)

	assert.Len(t, result.Entries, 1)
	assert.Equal(t, 5, result.TotalMatches)
	require.Len(t, result.Patterns, 1)
	assert.Equal(t, "billing", result.Patterns[0].Pattern)
	assert.Equal(t, 5, result.Patterns[0].Frequency)
	assert.Len(t, result.Patterns[0].Examples, 3)
	assert.Equal(t, "Billing question a", result.Patterns[0].Examples[0])
}

func TestRecall_DeterministicUnderFrozenClock(t *testing.T) {
	build := func() *core.Client {
		client := newTestClient(t, nil)
		for i, summary := range []string{"alpha beta", "beta gamma", "gamma delta", "alpha", "delta"} {
			seed(t, client, core.MemoryEntry{
				ID:             "id-" + string(rune('0'+i)),
				Summary:        summary,
				RelevanceScore: 0.5,
			}, days(i%2))
		}
		return client
	}

	ids := func(r *core.RecallResult) []string {
		var out []string
		for _, e := range r.Entries {
			out = append(out, e.ID)
		}
		return out
	}

	first, err := build().Recall(context.Background(), agent, "alpha gamma", core.WithMinRelevance(0))
	require.NoError(t, err)
	second, err := build().Recall(context.Background(), agent, "alpha gamma", core.WithMinRelevance(0))
	require.NoError(t, err)

	assert.Equal(t, ids(first), ids(second))
	assert.Len(t, first.Entries, 5)
}

func TestRecall_FiltersAndAverages(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	seed(t, client, core.MemoryEntry{Summary: "reset password steps"}, 0)
	seed(t, client, core.MemoryEntry{Type: core.TypeLog, Summary: "reset password clicked"}, 0)
	seed(t, client, core.MemoryEntry{Summary: "unrelated", RelevanceScore: 0}, days(365))

	result, err := client.Recall(ctx, agent, "reset password", core.WithTypes(core.TypeLog))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, core.TypeLog, result.Entries[0].Type)

	result, err = client.Recall(ctx, agent, "reset password", core.WithMinRelevance(0.5))
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalMatches)

	var sum float64
	for _, e := range result.Entries {
		sum += e.Score
		assert.GreaterOrEqual(t, e.Score, 0.5)
	}
	assert.InDelta(t, sum/2, result.AverageRelevance, 1e-9)
}

func TestRecall_ScopesAreIsolated(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	seed(t, client, core.MemoryEntry{UserID: "alice", Summary: "alice likes tea"}, 0)
	seed(t, client, core.MemoryEntry{UserID: "bob", Summary: "bob likes tea"}, 0)

	result, err := client.Recall(ctx, agent, "tea", core.WithUserIDForRecall("alice"))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "alice", result.Entries[0].UserID)

	result, err = client.Recall(ctx, agent, "tea")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.NotNil(t, result.Entries)
}

func TestRecall_BumpsReturnedEntries(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	top := seed(t, client, core.MemoryEntry{Summary: "reset password", RelevanceScore: 0.9}, days(2))
	rest := seed(t, client, core.MemoryEntry{Summary: "reset email", RelevanceScore: 0.1}, days(2))

	result, err := client.Recall(ctx, agent, "reset password", core.WithLimit(1), core.WithMinRelevance(0))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, 1, result.Entries[0].Frequency)

	got, err := client.Get(ctx, agent, top.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Frequency)
	assert.True(t, got.LastAccessed.Equal(now))

	untouched, err := client.Get(ctx, agent, rest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, untouched.Frequency)
	assert.True(t, untouched.LastAccessed.Equal(now.Add(-days(2))))
}

func TestRecall_BumpNeverResurrects(t *testing.T) {
	store := newFaultyStore(t)
	store.ghosts = []*storage.Entry{{
		ID:             "ghost",
		AgentID:        agent,
		Type:           storage.TypeSummary,
		Summary:        "reset password",
		Frequency:      1,
		RelevanceScore: 0.5,
		CreatedAt:      now,
		LastAccessed:   now,
	}}
	client := newTestClient(t, store)
	ctx := context.Background()

	result, err := client.Recall(ctx, agent, "reset password")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "ghost", result.Entries[0].ID)

	_, err = client.Get(ctx, agent, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecall_StoreFailure(t *testing.T) {
	store := newFaultyStore(t)
	client := newTestClient(t, store)
	seed(t, client, core.MemoryEntry{Summary: "reset password"}, 0)

	store.failList = errors.New("connection refused")
	result, err := client.Recall(context.Background(), agent, "reset password")

	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)

	var serr *core.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "ListByScope", serr.Op)
}

func TestRecall_BumpFailureKeepsResult(t *testing.T) {
	store := newFaultyStore(t)
	client := newTestClient(t, store)
	seed(t, client, core.MemoryEntry{Summary: "reset password"}, 0)

	store.failTouch = errors.New("read-only replica")
	result, err := client.Recall(context.Background(), agent, "reset password")

	assert.ErrorIs(t, err, core.ErrStorage)
	require.NotNil(t, result)
	assert.Len(t, result.Entries, 1)
}

func TestValidationPrecedesIO(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		field string
		call  func(c *core.Client) error
	}{
		{"recall empty agent", "agentId", func(c *core.Client) error {
			_, err := c.Recall(ctx, " ", "query")
			return err
		}},
		{"recall zero limit", "limit", func(c *core.Client) error {
			_, err := c.Recall(ctx, agent, "query", core.WithLimit(0))
			return err
		}},
		{"recall min relevance above one", "minRelevance", func(c *core.Client) error {
			_, err := c.Recall(ctx, agent, "query", core.WithMinRelevance(1.5))
			return err
		}},
		{"recall unknown type", "types", func(c *core.Client) error {
			_, err := c.Recall(ctx, agent, "query", core.WithTypes("note"))
			return err
		}},
		{"cleanup zero max age", "maxAge", func(c *core.Client) error {
			_, err := c.Cleanup(ctx, agent, core.WithMaxAge(0))
			return err
		}},
		{"cleanup negative max entries", "maxEntries", func(c *core.Client) error {
			_, err := c.Cleanup(ctx, agent, core.WithMaxEntries(-1))
			return err
		}},
		{"cleanup min relevance below zero", "minRelevance", func(c *core.Client) error {
			_, err := c.Cleanup(ctx, agent, core.WithCleanupMinRelevance(-0.1))
			return err
		}},
		{"stats empty agent", "agentId", func(c *core.Client) error {
			_, err := c.Stats(ctx, "")
			return err
		}},
		{"get empty id", "id", func(c *core.Client) error {
			_, err := c.Get(ctx, agent, "")
			return err
		}},
		{"delete empty agent", "agentId", func(c *core.Client) error {
			_, err := c.Delete(ctx, "", "1")
			return err
		}},
		{"add goal without goal", "goal", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeGoal, Summary: "ship v2"})
			return err
		}},
		{"add goal with bad status", "goal.status", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{
				AgentID: agent, Type: core.TypeGoal, Summary: "ship v2",
				Goal: &core.Goal{ID: "g1", Summary: "ship v2", Status: "done"},
			})
			return err
		}},
		{"add summary with goal", "goal", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{
				AgentID: agent, Type: core.TypeSummary, Summary: "ship v2",
				Goal: &core.Goal{ID: "g1", Status: core.GoalPending},
			})
			return err
		}},
		{"add session summary without session", "sessionId", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeSessionSummary, Summary: "wrap-up"})
			return err
		}},
		{"add log with session", "sessionId", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeLog, Summary: "x", SessionID: "s1"})
			return err
		}},
		{"add corrects id on summary", "correctsId", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeSummary, Summary: "x", CorrectsID: "1"})
			return err
		}},
		{"add relevance out of range", "relevanceScore", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeSummary, Summary: "x", RelevanceScore: 2})
			return err
		}},
		{"add accessed before created", "lastAccessed", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{
				AgentID: agent, Type: core.TypeSummary, Summary: "x",
				CreatedAt: now, LastAccessed: now.Add(-time.Hour),
			})
			return err
		}},
		{"add unknown type", "type", func(c *core.Client) error {
			_, err := c.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: "note", Summary: "x"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFaultyStore(t)
			client := newTestClient(t, store)

			err := tt.call(client)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)

			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, store.calls.Load(), "store must not be called")
		})
	}
}

func TestAdd_AssignsIDAndDefaults(t *testing.T) {
	client := newTestClient(t, nil)

	stored, err := client.Add(context.Background(), &core.MemoryEntry{
		AgentID: agent,
		Type:    core.TypeGoal,
		Summary: "Migrate billing to v2",
		Tags:    []string{" Billing ", "billing", "Migration"},
		Goal:    &core.Goal{ID: "g1", Summary: "billing v2", Status: core.GoalInProgress},
	})
	require.NoError(t, err)

	assert.Len(t, stored.ID, 19)
	assert.Equal(t, 1, stored.Frequency)
	assert.Equal(t, []string{"billing", "migration"}, stored.Tags)
	assert.True(t, stored.CreatedAt.Equal(now))
	assert.True(t, stored.LastAccessed.Equal(now))

	got, err := client.Get(context.Background(), agent, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestAdd_InferReinforcesDuplicates(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	first, err := client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeSummary, Summary: "User prefers dark mode",
	}, core.WithInfer(true))
	require.NoError(t, err)
	assert.Greater(t, first.RelevanceScore, 0.0)

	second, err := client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeSummary, Summary: "user prefers  DARK mode",
	}, core.WithInfer(true))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Frequency)

	third, err := client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeSummary, Summary: "dark mode user prefers",
	}, core.WithInfer(true))
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, 3, third.Frequency)

	other, err := client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeLog, Summary: "User prefers dark mode",
	}, core.WithInfer(true))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	plain, err := client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeSummary, Summary: "User prefers dark mode",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, plain.ID)

	stats, err := client.Stats(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
}

func TestAdd_CorrectionPenalizesTarget(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	wrong := seed(t, client, core.MemoryEntry{
		Summary: "Refunds take 3 days", Tags: []string{"refunds"}, RelevanceScore: 0.8,
	}, 0)
	seed(t, client, core.MemoryEntry{Summary: "Refund requested", Tags: []string{"refunds"}}, 0)
	seed(t, client, core.MemoryEntry{
		Type: core.TypeCorrection, Summary: "Refunds take 5 days",
		Tags: []string{"refunds"}, CorrectsID: wrong.ID,
	}, 0)

	got, err := client.Get(ctx, agent, wrong.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.RelevanceScore, 1e-9)

	result, err := client.Recall(ctx, agent, "refunds", core.WithMinRelevance(0))
	require.NoError(t, err)
	require.Len(t, result.Patterns, 1)
	assert.Equal(t, 2, result.Patterns[0].Frequency)
	assert.Equal(t, []string{"Refunds take 5 days"}, result.Patterns[0].Corrections)

	_, err = client.Add(ctx, &core.MemoryEntry{
		AgentID: agent, Type: core.TypeCorrection, Summary: "stale", CorrectsID: "missing",
	})
	assert.NoError(t, err)
}

func TestCleanup_ExpiresOldEntries(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	fresh := seed(t, client, core.MemoryEntry{Summary: "paid invoice", Tags: []string{"billing"}, RelevanceScore: 0.5}, days(1))
	seed(t, client, core.MemoryEntry{Summary: "disputed charge", Tags: []string{"billing"}, RelevanceScore: 0.5}, days(40))
	seed(t, client, core.MemoryEntry{Summary: "old refund", Tags: []string{"billing"}, RelevanceScore: 0.5}, days(100))

	result, err := client.Cleanup(ctx, agent, core.WithMaxAge(30))
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, 2, result.Expired)
	assert.Empty(t, result.FailedIDs)

	stats, err := client.Stats(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)

	_, err = client.Get(ctx, agent, fresh.ID)
	assert.NoError(t, err)
}

func TestCleanup_NeverOverEvicts(t *testing.T) {
	for _, tt := range []struct {
		maxEntries  int
		wantDeleted int
	}{
		{maxEntries: 10, wantDeleted: 0},
		{maxEntries: 5, wantDeleted: 0},
		{maxEntries: 3, wantDeleted: 2},
		{maxEntries: 0, wantDeleted: 5},
	} {
		client := newTestClient(t, nil)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			seed(t, client, core.MemoryEntry{Summary: "note", RelevanceScore: float64(i+1) / 10}, 0)
		}

		result, err := client.Cleanup(ctx, agent,
			core.WithMaxEntries(tt.maxEntries),
			core.WithCleanupMinRelevance(0),
		)
		require.NoError(t, err)
		assert.Equal(t, tt.wantDeleted, result.DeletedCount, "maxEntries=%d", tt.maxEntries)
		assert.Equal(t, tt.wantDeleted, result.Overflow)

		stats, err := client.Stats(ctx, agent)
		require.NoError(t, err)
		assert.Equal(t, 5-tt.wantDeleted, stats.TotalEntries)
	}
}

func TestCleanup_OverflowDropsLowestRanked(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	low := seed(t, client, core.MemoryEntry{Summary: "low", RelevanceScore: 0.2}, 0)
	seed(t, client, core.MemoryEntry{Summary: "mid", RelevanceScore: 0.5}, 0)
	seed(t, client, core.MemoryEntry{Summary: "high", RelevanceScore: 0.9}, 0)

	result, err := client.Cleanup(ctx, agent, core.WithMaxEntries(2), core.WithCleanupMinRelevance(0))
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)

	_, err = client.Get(ctx, agent, low.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCleanup_LowRelevanceSparesReinforced(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	weak := seed(t, client, core.MemoryEntry{Summary: "weak", RelevanceScore: 0.05}, 0)
	reinforced := seed(t, client, core.MemoryEntry{Summary: "weak but repeated", RelevanceScore: 0.05, Frequency: 3}, 0)

	result, err := client.Cleanup(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LowRelevance)

	_, err = client.Get(ctx, agent, weak.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = client.Get(ctx, agent, reinforced.ID)
	assert.NoError(t, err)
}

func TestCleanup_AllScopes(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	for _, user := range []string{"", "alice", "bob"} {
		seed(t, client, core.MemoryEntry{UserID: user, Summary: "stale", RelevanceScore: 0.5}, days(200))
		seed(t, client, core.MemoryEntry{UserID: user, Summary: "fresh", RelevanceScore: 0.5}, 0)
	}

	only, err := client.Cleanup(ctx, agent, core.WithUserIDForCleanup("alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, only.DeletedCount)
	assert.Equal(t, 1, only.Scopes)

	all, err := client.Cleanup(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 2, all.DeletedCount)
	assert.Equal(t, 3, all.Scopes)
}

func TestCleanup_PartialDeletion(t *testing.T) {
	store := newFaultyStore(t)
	observed, logs := observer.New(zap.DebugLevel)
	client := newTestClient(t, store, core.WithLogger(zap.New(observed)))
	ctx := context.Background()

	seed(t, client, core.MemoryEntry{Summary: "stale one", RelevanceScore: 0.5}, days(100))
	stuck := seed(t, client, core.MemoryEntry{Summary: "stale two", RelevanceScore: 0.5}, days(100))
	seed(t, client, core.MemoryEntry{Summary: "stale three", RelevanceScore: 0.5}, days(100))

	store.failDelete[stuck.ID] = errors.New("lock wait timeout")

	result, err := client.Cleanup(ctx, agent, core.WithMaxAge(30))
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, []string{stuck.ID}, result.FailedIDs)
	assert.ErrorIs(t, err, core.ErrPartialDeletion)
	assert.ErrorIs(t, err, core.ErrStorage)

	var partial *core.PartialDeletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Deleted)
	assert.Equal(t, []string{stuck.ID}, partial.FailedIDs)

	assert.Equal(t, 1, logs.FilterMessage("cleanup partially failed").Len())
}

func TestCleanup_StopsBetweenBatches(t *testing.T) {
	store := newFaultyStore(t)
	cfg := testConfig()
	cfg.Retention.BatchSize = 1
	client := newTestClientWithConfig(t, cfg, store)

	for i := 0; i < 3; i++ {
		seed(t, client, core.MemoryEntry{Summary: "stale", RelevanceScore: 0.5}, days(100))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.onDelete = func(string) { cancel() }

	result, err := client.Cleanup(ctx, agent, core.WithMaxAge(30))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.DeletedCount)

	stats, err := client.Stats(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
}

func TestCleanup_CancelKeepsFailures(t *testing.T) {
	store := newFaultyStore(t)
	cfg := testConfig()
	cfg.Retention.BatchSize = 1
	client := newTestClientWithConfig(t, cfg, store)

	stuck := seed(t, client, core.MemoryEntry{Summary: "stale one", RelevanceScore: 0.5}, days(100))
	seed(t, client, core.MemoryEntry{Summary: "stale two", RelevanceScore: 0.5}, days(100))
	seed(t, client, core.MemoryEntry{Summary: "stale three", RelevanceScore: 0.5}, days(100))
	store.failDelete[stuck.ID] = errors.New("lock wait timeout")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.onDelete = func(string) { cancel() }

	result, err := client.Cleanup(ctx, agent, core.WithMaxAge(30))
	require.NotNil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, core.ErrPartialDeletion)

	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, []string{stuck.ID}, result.FailedIDs)

	var partial *core.PartialDeletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Deleted)
	assert.Equal(t, []string{stuck.ID}, partial.FailedIDs)
}

func TestStats(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	seed(t, client, core.MemoryEntry{Summary: "a", Tags: []string{"billing"}, RelevanceScore: 0.2}, time.Hour)
	seed(t, client, core.MemoryEntry{Summary: "b", Tags: []string{"billing"}, RelevanceScore: 0.4}, days(3))
	seed(t, client, core.MemoryEntry{Type: core.TypeLog, Summary: "c", RelevanceScore: 0.6}, days(20))
	seed(t, client, core.MemoryEntry{UserID: "alice", Type: core.TypeLog, Summary: "d", RelevanceScore: 0.8}, days(60))

	stats, err := client.Stats(ctx, agent)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEntries)
	assert.Equal(t, map[core.EntryType]int{core.TypeSummary: 2, core.TypeLog: 2}, stats.ByType)
	assert.InDelta(t, 0.5, stats.AverageRelevance, 1e-9)
	assert.Equal(t, core.RecentActivity{
		Last24h:    1,
		Last7d:     2,
		Last30d:    3,
		MostRecent: stats.RecentActivity.MostRecent,
	}, stats.RecentActivity)
	require.NotNil(t, stats.RecentActivity.MostRecent)
	assert.True(t, stats.RecentActivity.MostRecent.Equal(now.Add(-time.Hour)))
	require.Len(t, stats.TopPatterns, 1)
	assert.Equal(t, "billing", stats.TopPatterns[0].Pattern)

	scoped, err := client.Stats(ctx, agent, core.WithUserIDForStats("alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, scoped.TotalEntries)

	// Stats is read-only.
	again, err := client.Stats(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestStats_TopPatternsCapped(t *testing.T) {
	client := newTestClient(t, nil)
	for _, tag := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		seed(t, client, core.MemoryEntry{Summary: "one " + tag, Tags: []string{tag}}, 0)
		seed(t, client, core.MemoryEntry{Summary: "two " + tag, Tags: []string{tag}}, 0)
	}

	stats, err := client.Stats(context.Background(), agent)
	require.NoError(t, err)
	assert.Len(t, stats.TopPatterns, 5)
	assert.Equal(t, "a", stats.TopPatterns[0].Pattern)
}

func TestGetAndDelete(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	e := seed(t, client, core.MemoryEntry{UserID: "alice", Summary: "likes tea"}, 0)

	_, err := client.Get(ctx, agent, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := client.Get(ctx, agent, e.ID, core.WithUserIDForGet("alice"))
	require.NoError(t, err)
	assert.Equal(t, "likes tea", got.Summary)

	removed, err := client.Delete(ctx, agent, e.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = client.Delete(ctx, agent, e.ID, core.WithUserIDForDelete("alice"))
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = client.Delete(ctx, agent, e.ID, core.WithUserIDForDelete("alice"))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestBreakerFailsFast(t *testing.T) {
	store := newFaultyStore(t)
	store.failList = errors.New("connection refused")

	cfg := testConfig()
	cfg.Breaker.Enabled = true
	cfg.Breaker.MaxFailures = 2
	client := newTestClientWithConfig(t, cfg, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Recall(ctx, agent, "q")
		require.ErrorIs(t, err, core.ErrStorage)
		assert.NotErrorIs(t, err, core.ErrUnavailable)
	}

	before := store.calls.Load()
	_, err := client.Recall(ctx, agent, "q")
	assert.ErrorIs(t, err, core.ErrUnavailable)
	assert.Equal(t, before, store.calls.Load())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg, "")
	require.NoError(t, err)

	client := newTestClient(t, nil, core.WithMetrics(recorder))
	ctx := context.Background()

	seed(t, client, core.MemoryEntry{Summary: "reset password"}, 0)
	seed(t, client, core.MemoryEntry{Summary: "stale", RelevanceScore: 0.5}, days(100))

	_, err = client.Recall(ctx, agent, "reset password")
	require.NoError(t, err)
	_, err = client.Cleanup(ctx, agent)
	require.NoError(t, err)

	expected := `
# HELP recallmem_cleanup_deleted_total Entries deleted by cleanup, by retention bound.
# TYPE recallmem_cleanup_deleted_total counter
recallmem_cleanup_deleted_total{reason="expired"} 1
# HELP recallmem_entries_added_total Entries written, by entry type.
# TYPE recallmem_entries_added_total counter
recallmem_entries_added_total{type="summary"} 2
# HELP recallmem_recall_total Number of recall operations served.
# TYPE recallmem_recall_total counter
recallmem_recall_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"recallmem_recall_total", "recallmem_cleanup_deleted_total", "recallmem_entries_added_total"))
}

func TestRecallResultJSON(t *testing.T) {
	client := newTestClient(t, nil)
	seed(t, client, core.MemoryEntry{Summary: "reset password", Tags: []string{"account"}}, 0)

	result, err := client.Recall(context.Background(), agent, "password")
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "entries")
	assert.Contains(t, decoded, "patterns")
	assert.EqualValues(t, 1, decoded["totalMatches"])
	assert.Contains(t, decoded, "averageRelevance")

	entry := decoded["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "summary", entry["type"])
	assert.Equal(t, agent, entry["agentId"])
	assert.Contains(t, entry, "score")
	assert.Contains(t, entry, "relevanceScore")
	assert.Contains(t, entry, "lastAccessed")
}

func TestClose_Idempotent(t *testing.T) {
	store, err := inmemory.NewStore(1)
	require.NoError(t, err)
	client, err := core.NewClientWithStore(testConfig(), store)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestClient_RejectsCallsAfterClose(t *testing.T) {
	store := newFaultyStore(t)
	client, err := core.NewClientWithStore(testConfig(), store)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	ctx := context.Background()
	before := store.calls.Load()

	_, err = client.Add(ctx, &core.MemoryEntry{AgentID: agent, Type: core.TypeLog, Summary: "late"})
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = client.Recall(ctx, agent, "late")
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = client.Cleanup(ctx, agent)
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = client.Stats(ctx, agent)
	assert.ErrorIs(t, err, core.ErrClosed)
	_, err = client.Get(ctx, agent, "1")
	assert.ErrorIs(t, err, core.ErrClosed)
	removed, err := client.Delete(ctx, agent, "1")
	assert.ErrorIs(t, err, core.ErrClosed)
	assert.False(t, removed)

	assert.NotErrorIs(t, err, core.ErrStorage)
	assert.Equal(t, before, store.calls.Load())
}
