package core

import (
	"go.uber.org/zap"

	"github.com/oceanbase/recallmem-go/pkg/intelligence"
	"github.com/oceanbase/recallmem-go/pkg/metrics"
)

// AddOption is a function type for configuring Add operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type AddOption func(*AddOptions)

// AddOptions contains configuration options for Add operations.
type AddOptions struct {
	// Infer enables relevance inference and near-duplicate reinforcement.
	// When true, an entry with a zero RelevanceScore gets one from the
	// importance evaluator, and an entry whose summary closely matches an
	// existing entry of the same scope and type reinforces that entry
	// instead of being inserted.
	Infer bool
}

// WithInfer enables or disables inference for Add operations.
//
// Example:
//
//	entry, _ := client.Add(ctx, entry, core.WithInfer(true))
func WithInfer(infer bool) AddOption {
	return func(opts *AddOptions) {
		opts.Infer = infer
	}
}

// RecallOption is a function type for configuring Recall operations.
type RecallOption func(*RecallOptions)

// RecallOptions contains configuration options for Recall operations.
type RecallOptions struct {
	// UserID restricts recall to one user's scope. Empty means agent-global.
	UserID string

	// Limit is the maximum number of entries returned. Must be positive.
	Limit int

	// MinRelevance drops entries scoring below it. Must be within [0,1].
	MinRelevance float64

	// Types restricts recall to the given entry types. Empty means all.
	Types []EntryType
}

// WithUserIDForRecall sets the user ID for Recall operations.
//
// Example:
//
//	result, _ := client.Recall(ctx, "agent", "query", core.WithUserIDForRecall("user_001"))
func WithUserIDForRecall(userID string) RecallOption {
	return func(opts *RecallOptions) {
		opts.UserID = userID
	}
}

// WithLimit sets the maximum number of entries returned by Recall.
//
// Example:
//
//	result, _ := client.Recall(ctx, "agent", "query", core.WithLimit(10))
func WithLimit(limit int) RecallOption {
	return func(opts *RecallOptions) {
		opts.Limit = limit
	}
}

// WithMinRelevance sets the score floor for Recall.
func WithMinRelevance(minRelevance float64) RecallOption {
	return func(opts *RecallOptions) {
		opts.MinRelevance = minRelevance
	}
}

// WithTypes restricts Recall to the given entry types.
//
// Example:
//
//	result, _ := client.Recall(ctx, "agent", "query",
//	    core.WithTypes(core.TypeSummary, core.TypeCorrection),
//	)
func WithTypes(types ...EntryType) RecallOption {
	return func(opts *RecallOptions) {
		opts.Types = types
	}
}

// CleanupOption is a function type for configuring Cleanup operations.
type CleanupOption func(*CleanupOptions)

// CleanupOptions contains configuration options for Cleanup operations.
type CleanupOptions struct {
	// UserID restricts cleanup to one scope. Nil means every scope of the agent.
	UserID *string

	// MaxAgeDays evicts entries not accessed for longer. Must be positive.
	MaxAgeDays int

	// MinRelevance evicts never-reinforced entries below it.
	MinRelevance float64

	// MaxEntries caps each scope. Must not be negative.
	MaxEntries int
}

// WithUserIDForCleanup restricts Cleanup to one user's scope. Pass an empty
// string to restrict it to the agent-global scope.
func WithUserIDForCleanup(userID string) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.UserID = &userID
	}
}

// WithMaxAge sets the maximum age in days since last access.
//
// Example:
//
//	result, _ := client.Cleanup(ctx, "agent", core.WithMaxAge(30))
func WithMaxAge(days int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.MaxAgeDays = days
	}
}

// WithCleanupMinRelevance sets the relevance floor for Cleanup.
func WithCleanupMinRelevance(minRelevance float64) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.MinRelevance = minRelevance
	}
}

// WithMaxEntries sets the per-scope entry cap for Cleanup.
func WithMaxEntries(maxEntries int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.MaxEntries = maxEntries
	}
}

// StatsOption is a function type for configuring Stats operations.
type StatsOption func(*StatsOptions)

// StatsOptions contains configuration options for Stats operations.
type StatsOptions struct {
	// UserID restricts stats to one scope. Nil means every scope of the agent.
	UserID *string
}

// WithUserIDForStats restricts Stats to one user's scope.
func WithUserIDForStats(userID string) StatsOption {
	return func(opts *StatsOptions) {
		opts.UserID = &userID
	}
}

// GetOption is a function type for configuring Get operations.
type GetOption func(*GetOptions)

// GetOptions contains configuration options for Get operations.
type GetOptions struct {
	UserID string
}

// WithUserIDForGet sets the user ID for Get operations.
func WithUserIDForGet(userID string) GetOption {
	return func(opts *GetOptions) {
		opts.UserID = userID
	}
}

// DeleteOption is a function type for configuring Delete operations.
type DeleteOption func(*DeleteOptions)

// DeleteOptions contains configuration options for Delete operations.
type DeleteOptions struct {
	UserID string
}

// WithUserIDForDelete sets the user ID for Delete operations.
func WithUserIDForDelete(userID string) DeleteOption {
	return func(opts *DeleteOptions) {
		opts.UserID = userID
	}
}

// ClientOption customises a Client beyond what Config expresses.
type ClientOption func(*Client)

// WithClock replaces the system clock, typically with an
// intelligence.FixedClock in tests.
func WithClock(clock intelligence.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
//
// Example:
//
//	recorder, _ := metrics.NewRecorder(prometheus.NewRegistry(), "")
//	client, _ := core.NewClient(config, core.WithMetrics(recorder))
func WithMetrics(recorder *metrics.Recorder) ClientOption {
	return func(c *Client) {
		c.metrics = recorder
	}
}

func applyAddOptions(opts []AddOption) *AddOptions {
	o := &AddOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func applyRecallOptions(defaults RetrievalConfig, opts []RecallOption) *RecallOptions {
	o := &RecallOptions{
		Limit:        defaults.DefaultLimit,
		MinRelevance: defaults.MinRelevance,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func applyCleanupOptions(defaults RetentionConfig, opts []CleanupOption) *CleanupOptions {
	o := &CleanupOptions{
		MaxAgeDays:   defaults.MaxAgeDays,
		MinRelevance: defaults.MinRelevance,
		MaxEntries:   defaults.MaxEntries,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func applyStatsOptions(opts []StatsOption) *StatsOptions {
	o := &StatsOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func applyGetOptions(opts []GetOption) *GetOptions {
	o := &GetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func applyDeleteOptions(opts []DeleteOption) *DeleteOptions {
	o := &DeleteOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
