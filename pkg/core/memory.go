package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/oceanbase/recallmem-go/pkg/intelligence"
	"github.com/oceanbase/recallmem-go/pkg/metrics"
	"github.com/oceanbase/recallmem-go/pkg/storage"
	"github.com/oceanbase/recallmem-go/pkg/storage/guard"
	"github.com/oceanbase/recallmem-go/pkg/storage/inmemory"
	"github.com/oceanbase/recallmem-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/recallmem-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/recallmem-go/pkg/storage/sqlite"
)

// Client is the RecallMem memory manager.
//
// It composes a MemoryStore with the relevance scorer, the pattern detector
// and the retention policy to provide:
//   - Add: validated writes with optional relevance inference and reinforcement
//   - Recall: ranked retrieval with pattern detection over all matches
//   - Cleanup: age, relevance and volume bounded eviction
//   - Stats: read-only aggregation
//
// The client is safe for concurrent use. Recall and Cleanup on the same scope
// are not isolated from each other: a recall may return an entry that a
// concurrent cleanup deletes moments later, and the recall's access bump on
// that entry is then a no-op.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	result, _ := client.Recall(ctx, "support-bot", "reset password",
//	    core.WithUserIDForRecall("user_001"),
//	    core.WithLimit(5),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// store persists entries.
	store storage.MemoryStore

	scorer     *intelligence.RelevanceScorer
	patterns   *intelligence.PatternDetector
	retention  *intelligence.RetentionPolicy
	importance *intelligence.ImportanceEvaluator
	dedup      *intelligence.DedupManager

	clock   intelligence.Clock
	logger  *zap.Logger
	metrics *metrics.Recorder

	// mu lets Close wait for in-flight operations.
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new RecallMem client.
//
// The client is initialized with:
//   - The store named by cfg.Store (SQLite, PostgreSQL, OceanBase or in-memory)
//   - A circuit breaker around the store if cfg.Breaker.Enabled
//   - A zap logger built from cfg.Logging unless WithLogger is given
//   - Prometheus metrics on the default registerer if cfg.Metrics.Enabled
//     and WithMetrics is not given
//
// Parameters:
//   - cfg: Configuration containing store, retrieval and retention settings
//   - opts: Optional client options (clock, logger, metrics)
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStorage(cfg.Store, cfg.NodeID)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg, store, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithStore creates a client over an existing store. The client
// takes ownership of store and closes it on Close.
func NewClientWithStore(cfg *Config, store storage.MemoryStore, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, NewMemoryError("NewClientWithStore", fmt.Errorf("%w: store is nil", ErrInvalidConfig))
	}
	return newClient(cfg, store, opts)
}

func newClient(cfg *Config, store storage.MemoryStore, opts []ClientOption) (*Client, error) {
	scorer := intelligence.NewRelevanceScorer(cfg.scorerConfig())

	client := &Client{
		config:   cfg,
		scorer:   scorer,
		patterns: intelligence.NewPatternDetector(intelligence.PatternConfig{
			MinFrequency: cfg.Retrieval.PatternMinFrequency,
			MaxExamples:  cfg.Retrieval.PatternMaxExamples,
		}),
		retention:  intelligence.NewRetentionPolicy(scorer),
		importance: intelligence.NewImportanceEvaluator(),
		dedup:      intelligence.NewDedupManager(cfg.Intelligence.DuplicateThreshold),
		clock:      intelligence.SystemClock{},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.logger == nil {
		logger, err := NewLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		client.logger = logger
	}

	if client.metrics == nil && cfg.Metrics.Enabled {
		recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
		client.metrics = recorder
	}

	if cfg.Breaker.Enabled {
		store = guard.New(store, guard.Config{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		}, client.logger)
	}
	client.store = store

	return client, nil
}

// Add writes a new entry.
//
// The method:
//  1. Validates the entry's per-variant fields (before any I/O)
//  2. With WithInfer(true), infers a relevance score when it is zero and
//     reinforces a near-duplicate of the same scope and type instead of
//     inserting
//  3. Stores the entry, assigning an id when it has none
//  4. For a correction with CorrectsID, lowers the corrected entry's
//     relevance by the configured penalty
//
// Returns the stored (or reinforced) entry. When the correction penalty
// cannot be applied the stored entry is returned together with the error.
func (c *Client) Add(ctx context.Context, m *MemoryEntry, opts ...AddOption) (*MemoryEntry, error) {
	if err := validateEntry(m); err != nil {
		return nil, NewMemoryError("Add", err)
	}
	o := applyAddOptions(opts)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, NewMemoryError("Add", ErrClosed)
	}

	now := c.clock.Now()
	entry := toStorageEntry(m)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastAccessed.IsZero() {
		entry.LastAccessed = entry.CreatedAt
	}
	entry.Tags = storage.NormalizeTags(entry.Tags)
	scope := entry.Scope()

	if o.Infer {
		if entry.RelevanceScore == 0 {
			entry.RelevanceScore = c.importance.Evaluate(entry)
		}
		if entry.ID == "" {
			reinforced, err := c.reinforce(ctx, entry, now)
			if err != nil {
				return nil, NewMemoryError("Add", err)
			}
			if reinforced != nil {
				return fromStorageEntry(reinforced), nil
			}
		}
	}

	if _, err := c.store.Put(ctx, entry); err != nil {
		return nil, NewMemoryError("Add", c.storageError("Put", err))
	}
	c.metrics.IncEntriesAdded(string(entry.Type))
	c.logger.Debug("entry added",
		zap.String("agent_id", scope.AgentID),
		zap.String("user_id", scope.UserID),
		zap.String("id", entry.ID),
		zap.String("type", string(entry.Type)),
	)

	stored := fromStorageEntry(entry)
	if entry.Type == storage.TypeCorrection && entry.CorrectsID != "" {
		if err := c.penalize(ctx, scope, entry.CorrectsID); err != nil {
			return stored, NewMemoryError("Add", err)
		}
	}
	return stored, nil
}

// reinforce looks for a near-duplicate of entry and touches it. It returns
// the reinforced entry, or nil when entry should be inserted.
func (c *Client) reinforce(ctx context.Context, entry *storage.Entry, now time.Time) (*storage.Entry, error) {
	scope := entry.Scope()

	// Exact summary matches are the common case and stores may index them.
	exact, err := storage.FindBySummary(ctx, c.store, scope, entry.Summary)
	if err != nil {
		return nil, c.storageError("FindBySummary", err)
	}
	dup, _ := c.dedup.CheckDuplicate(entry, exact)

	if dup == nil {
		existing, err := storage.Collect(c.store.ListByScope(ctx, scope))
		if err != nil {
			return nil, c.storageError("ListByScope", err)
		}
		dup, _ = c.dedup.CheckDuplicate(entry, existing)
	}
	if dup == nil {
		return nil, nil
	}

	ok, err := c.store.Touch(ctx, scope, dup.ID, now)
	if err != nil {
		return nil, c.storageError("Touch", err)
	}
	if !ok {
		// Deleted since it was read.
		return nil, nil
	}

	reinforced, err := c.store.Get(ctx, scope, dup.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, c.storageError("Get", err)
	}

	c.logger.Debug("entry reinforced",
		zap.String("agent_id", scope.AgentID),
		zap.String("user_id", scope.UserID),
		zap.String("id", reinforced.ID),
		zap.Int("frequency", reinforced.Frequency),
	)
	return reinforced, nil
}

// penalize scales the relevance of the entry a correction refers to. A
// missing target is not an error.
func (c *Client) penalize(ctx context.Context, scope storage.Scope, id string) error {
	target, err := c.store.Get(ctx, scope, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug("corrected entry not found", zap.String("id", id))
		return nil
	}
	if err != nil {
		return c.storageError("Get", err)
	}

	target.RelevanceScore *= c.config.Intelligence.CorrectionPenalty
	if _, err := c.store.Put(ctx, target); err != nil {
		return c.storageError("Put", err)
	}
	return nil
}

// Recall retrieves the entries of a scope most relevant to query.
//
// The method:
//  1. Validates the options (before any I/O)
//  2. Loads every entry of the scope and keeps the requested types
//  3. Scores and ranks them, dropping those below MinRelevance
//  4. Detects patterns over all matches
//  5. Returns the top Limit matches and bumps their access time and frequency
//
// A failed store read returns an error, never an empty result. A failed
// access bump returns the computed result together with the error. Returned
// entries carry the state they were scored in.
//
// Example:
//
//	result, err := client.Recall(ctx, "support-bot", "reset password",
//	    core.WithLimit(5),
//	    core.WithTypes(core.TypeSummary),
//	)
func (c *Client) Recall(ctx context.Context, agentID, query string, opts ...RecallOption) (*RecallResult, error) {
	o := applyRecallOptions(c.config.Retrieval, opts)
	if err := validateAgentID(agentID); err != nil {
		return nil, NewMemoryError("Recall", err)
	}
	if err := o.validate(); err != nil {
		return nil, NewMemoryError("Recall", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, NewMemoryError("Recall", ErrClosed)
	}

	scope := storage.Scope{AgentID: agentID, UserID: o.UserID}
	now := c.clock.Now()

	entries, err := storage.Collect(c.store.ListByScope(ctx, scope))
	if err != nil {
		return nil, NewMemoryError("Recall", c.storageError("ListByScope", err))
	}

	if len(o.Types) > 0 {
		wanted := make(map[EntryType]struct{}, len(o.Types))
		for _, t := range o.Types {
			wanted[t] = struct{}{}
		}
		filtered := entries[:0]
		for _, e := range entries {
			if _, ok := wanted[e.Type]; ok {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	var (
		matches     []intelligence.Scored
		matched     []*storage.Entry
		corrections []*storage.Entry
		sum         float64
	)
	for _, s := range c.scorer.Rank(query, entries, now) {
		if s.Score < o.MinRelevance {
			continue
		}
		matches = append(matches, s)
		matched = append(matched, s.Entry)
		if s.Entry.Type == storage.TypeCorrection {
			corrections = append(corrections, s.Entry)
		}
		sum += s.Score
	}

	result := &RecallResult{
		Entries:      []ScoredEntry{},
		Patterns:     fromPatterns(c.patterns.Detect(matched, corrections)),
		TotalMatches: len(matches),
	}
	if len(matches) > 0 {
		result.AverageRelevance = sum / float64(len(matches))
	}

	page := matches
	if len(page) > o.Limit {
		page = page[:o.Limit]
	}
	for _, s := range page {
		result.Entries = append(result.Entries, ScoredEntry{
			MemoryEntry: *fromStorageEntry(s.Entry),
			Score:       s.Score,
		})
	}

	c.metrics.ObserveRecall(result.TotalMatches)
	c.logger.Debug("recall",
		zap.String("agent_id", scope.AgentID),
		zap.String("user_id", scope.UserID),
		zap.Int("candidates", len(entries)),
		zap.Int("matches", result.TotalMatches),
		zap.Int("returned", len(result.Entries)),
	)

	if err := c.bump(ctx, scope, page, now); err != nil {
		return result, NewMemoryError("Recall", err)
	}
	return result, nil
}

// bump records an access on every returned entry. Entries deleted since they
// were read are skipped. Every entry is attempted; the first failure is
// returned.
func (c *Client) bump(ctx context.Context, scope storage.Scope, page []intelligence.Scored, now time.Time) error {
	var first error
	for _, s := range page {
		if _, err := c.store.Touch(ctx, scope, s.Entry.ID, now); err != nil {
			serr := c.storageError("Touch", err)
			if first == nil {
				first = serr
			}
		}
	}
	return first
}

// Cleanup evicts entries of the agent that violate the retention bounds.
//
// Without WithUserIDForCleanup every scope of the agent is cleaned, each
// against its own MaxEntries cap. Deletions run in batches of
// Retention.BatchSize and ctx is checked between batches; when it is done the
// result so far is returned with the context error.
//
// If some deletions fail, the result is returned together with a
// *PartialDeletionError listing the failed ids. Entries that were deleted
// stay deleted.
//
// Example:
//
//	result, err := client.Cleanup(ctx, "support-bot",
//	    core.WithMaxAge(30),
//	    core.WithMaxEntries(500),
//	)
//	var partial *core.PartialDeletionError
//	if errors.As(err, &partial) {
//	    log.Printf("failed to delete %v", partial.FailedIDs)
//	}
func (c *Client) Cleanup(ctx context.Context, agentID string, opts ...CleanupOption) (*CleanupResult, error) {
	o := applyCleanupOptions(c.config.Retention, opts)
	if err := validateAgentID(agentID); err != nil {
		return nil, NewMemoryError("Cleanup", err)
	}
	if err := o.validate(); err != nil {
		return nil, NewMemoryError("Cleanup", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, NewMemoryError("Cleanup", ErrClosed)
	}

	scopes, err := c.scopes(ctx, agentID, o.UserID)
	if err != nil {
		return nil, NewMemoryError("Cleanup", err)
	}

	retention := intelligence.RetentionOptions{
		MaxAge:       time.Duration(o.MaxAgeDays) * 24 * time.Hour,
		MinRelevance: o.MinRelevance,
		MaxEntries:   o.MaxEntries,
	}
	now := c.clock.Now()
	result := &CleanupResult{}
	partial := &PartialDeletionError{Errs: make(map[string]error)}

	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return abortCleanup(result, partial, err)
		}

		entries, err := storage.Collect(c.store.ListByScope(ctx, scope))
		if err != nil {
			return abortCleanup(result, partial, c.storageError("ListByScope", err))
		}
		result.Scopes++

		plan := c.retention.Plan(entries, now, retention)
		if err := c.execute(ctx, scope, plan, result, partial); err != nil {
			return abortCleanup(result, partial, err)
		}

		c.logger.Debug("cleanup scope",
			zap.String("agent_id", scope.AgentID),
			zap.String("user_id", scope.UserID),
			zap.Int("entries", len(entries)),
			zap.Int("planned", plan.Total()),
			zap.Int("kept", plan.Kept),
		)
	}

	if len(partial.FailedIDs) > 0 {
		partial.Deleted = result.DeletedCount
		result.FailedIDs = partial.FailedIDs
		c.logger.Warn("cleanup partially failed",
			zap.String("agent_id", agentID),
			zap.Int("deleted", result.DeletedCount),
			zap.Strings("failed_ids", partial.FailedIDs),
		)
		return result, NewMemoryError("Cleanup", partial)
	}
	return result, nil
}

// abortCleanup reports a cleanup that stopped early. Failures recorded
// before the stop are kept in the result and in the returned error.
func abortCleanup(result *CleanupResult, partial *PartialDeletionError, err error) (*CleanupResult, error) {
	if len(partial.FailedIDs) == 0 {
		return result, NewMemoryError("Cleanup", err)
	}
	partial.Deleted = result.DeletedCount
	result.FailedIDs = partial.FailedIDs
	return result, NewMemoryError("Cleanup", errors.Join(err, partial))
}

// execute deletes the planned ids in batches and accumulates the outcome.
// It returns an error only when ctx is done between batches.
func (c *Client) execute(ctx context.Context, scope storage.Scope, plan intelligence.RetentionPlan, result *CleanupResult, partial *PartialDeletionError) error {
	reasons := make(map[string]string, plan.Total())
	for _, id := range plan.Expired {
		reasons[id] = "expired"
	}
	for _, id := range plan.LowRelevance {
		reasons[id] = "low_relevance"
	}
	for _, id := range plan.Overflow {
		reasons[id] = "overflow"
	}

	for _, chunk := range storage.Chunk(plan.IDs(), c.config.Retention.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := c.store.DeleteBatch(ctx, scope, chunk)
		if err != nil {
			serr := c.storageError("DeleteBatch", err)
			for _, id := range chunk {
				partial.FailedIDs = append(partial.FailedIDs, id)
				partial.Errs[id] = serr
			}
			continue
		}

		for _, id := range batch.Deleted {
			result.DeletedCount++
			switch reasons[id] {
			case "expired":
				result.Expired++
			case "low_relevance":
				result.LowRelevance++
			case "overflow":
				result.Overflow++
			}
			c.metrics.AddCleanupDeleted(reasons[id], 1)
		}
		for _, id := range batch.FailedIDs(chunk) {
			c.metrics.IncStorageError("DeleteBatch")
			partial.FailedIDs = append(partial.FailedIDs, id)
			partial.Errs[id] = &StorageError{Op: "Delete", Err: batch.Failed[id]}
		}
	}
	return nil
}

// Stats summarizes the entries of an agent without modifying them.
//
// Without WithUserIDForStats every scope of the agent is included.
func (c *Client) Stats(ctx context.Context, agentID string, opts ...StatsOption) (*Stats, error) {
	o := applyStatsOptions(opts)
	if err := validateAgentID(agentID); err != nil {
		return nil, NewMemoryError("Stats", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, NewMemoryError("Stats", ErrClosed)
	}

	scopes, err := c.scopes(ctx, agentID, o.UserID)
	if err != nil {
		return nil, NewMemoryError("Stats", err)
	}

	var entries, corrections []*storage.Entry
	for _, scope := range scopes {
		scoped, err := storage.Collect(c.store.ListByScope(ctx, scope))
		if err != nil {
			return nil, NewMemoryError("Stats", c.storageError("ListByScope", err))
		}
		entries = append(entries, scoped...)
	}

	now := c.clock.Now()
	stats := &Stats{
		TotalEntries: len(entries),
		ByType:       make(map[EntryType]int),
		TopPatterns:  []MemoryPattern{},
	}

	var sum float64
	for _, e := range entries {
		stats.ByType[e.Type]++
		sum += e.RelevanceScore
		if e.Type == storage.TypeCorrection {
			corrections = append(corrections, e)
		}

		age := now.Sub(e.LastAccessed)
		if age <= 24*time.Hour {
			stats.RecentActivity.Last24h++
		}
		if age <= 7*24*time.Hour {
			stats.RecentActivity.Last7d++
		}
		if age <= 30*24*time.Hour {
			stats.RecentActivity.Last30d++
		}
		if mr := stats.RecentActivity.MostRecent; mr == nil || e.LastAccessed.After(*mr) {
			last := e.LastAccessed
			stats.RecentActivity.MostRecent = &last
		}
	}
	if len(entries) > 0 {
		stats.AverageRelevance = sum / float64(len(entries))
	}

	const maxTopPatterns = 5
	patterns := c.patterns.Detect(entries, corrections)
	if len(patterns) > maxTopPatterns {
		patterns = patterns[:maxTopPatterns]
	}
	stats.TopPatterns = fromPatterns(patterns)

	return stats, nil
}

// scopes resolves the scopes an operation covers: the one named by userID,
// or every scope of the agent when userID is nil.
func (c *Client) scopes(ctx context.Context, agentID string, userID *string) ([]storage.Scope, error) {
	if userID != nil {
		return []storage.Scope{{AgentID: agentID, UserID: *userID}}, nil
	}
	scopes, err := c.store.ListScopes(ctx, agentID)
	if err != nil {
		return nil, c.storageError("ListScopes", err)
	}
	return scopes, nil
}

// Get retrieves an entry by id. It does not count as an access.
//
// Returns an error wrapping ErrNotFound if the entry does not exist in the scope.
func (c *Client) Get(ctx context.Context, agentID, id string, opts ...GetOption) (*MemoryEntry, error) {
	o := applyGetOptions(opts)
	if err := validateAgentID(agentID); err != nil {
		return nil, NewMemoryError("Get", err)
	}
	if err := validateID(id); err != nil {
		return nil, NewMemoryError("Get", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, NewMemoryError("Get", ErrClosed)
	}

	entry, err := c.store.Get(ctx, storage.Scope{AgentID: agentID, UserID: o.UserID}, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewMemoryError("Get", ErrNotFound)
	}
	if err != nil {
		return nil, NewMemoryError("Get", c.storageError("Get", err))
	}

	return fromStorageEntry(entry), nil
}

// Delete removes an entry by id. A non-existent id returns false and no error.
func (c *Client) Delete(ctx context.Context, agentID, id string, opts ...DeleteOption) (bool, error) {
	o := applyDeleteOptions(opts)
	if err := validateAgentID(agentID); err != nil {
		return false, NewMemoryError("Delete", err)
	}
	if err := validateID(id); err != nil {
		return false, NewMemoryError("Delete", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false, NewMemoryError("Delete", ErrClosed)
	}

	removed, err := c.store.Delete(ctx, storage.Scope{AgentID: agentID, UserID: o.UserID}, id)
	if err != nil {
		return false, NewMemoryError("Delete", c.storageError("Delete", err))
	}
	return removed, nil
}

// Close closes the client and its store, waiting for in-flight operations.
// Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = c.logger.Sync()

	if len(errs) > 0 {
		return NewMemoryError("Close", errors.Join(errs...))
	}
	return nil
}

// storageError wraps a store failure and counts it.
func (c *Client) storageError(op string, err error) error {
	c.metrics.IncStorageError(op)
	return &StorageError{Op: op, Err: err}
}

// initStorage initializes the memory store named by cfg.
func initStorage(cfg StoreConfig, nodeID int64) (storage.MemoryStore, error) {
	var (
		store storage.MemoryStore
		err   error
	)

	switch cfg.Provider {
	case ProviderOceanBase:
		store, err = oceanbase.NewClient(&oceanbase.Config{
			Host:           configString(cfg.Config, "host", "127.0.0.1"),
			Port:           configInt(cfg.Config, "port", 2881),
			User:           configString(cfg.Config, "user", "root@sys"),
			Password:       configString(cfg.Config, "password", ""),
			DBName:         configString(cfg.Config, "db_name", "recallmem"),
			CollectionName: configString(cfg.Config, "collection_name", ""),
			NodeID:         nodeID,
		})
	case ProviderSQLite:
		store, err = sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:         configString(cfg.Config, "db_path", "./recallmem.db"),
			CollectionName: configString(cfg.Config, "collection_name", ""),
			NodeID:         nodeID,
		})
	case ProviderPostgres:
		store, err = postgresStore.NewClient(&postgresStore.Config{
			Host:           configString(cfg.Config, "host", "localhost"),
			Port:           configInt(cfg.Config, "port", 5432),
			User:           configString(cfg.Config, "user", "postgres"),
			Password:       configString(cfg.Config, "password", ""),
			DBName:         configString(cfg.Config, "db_name", "recallmem"),
			CollectionName: configString(cfg.Config, "collection_name", ""),
			SSLMode:        configString(cfg.Config, "ssl_mode", "disable"),
			NodeID:         nodeID,
		})
	case ProviderMemory:
		store, err = inmemory.NewStore(nodeID)
	default:
		return nil, NewMemoryError("initStorage", ErrInvalidConfig)
	}

	if err != nil {
		return nil, NewMemoryError("initStorage", err)
	}
	return store, nil
}

// configString reads a string provider setting.
func configString(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

// configInt reads an integer provider setting. JSON decodes numbers as
// float64 and env files yield strings, so both are accepted.
func configInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
