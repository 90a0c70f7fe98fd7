// Package guard wraps a storage.MemoryStore with a circuit breaker.
//
// After MaxFailures consecutive backend failures the breaker opens and every
// call fails immediately with storage.ErrUnavailable until Timeout elapses.
// Calls are never retried.
package guard

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Config holds the breaker settings.
type Config struct {
	// MaxFailures is the number of consecutive failures that trips the breaker.
	// Default: 5
	MaxFailures uint32

	// Timeout is how long the breaker stays open before probing again.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxRequests is the number of probe calls allowed while half-open.
	// Default: 1
	HalfOpenMaxRequests uint32
}

// Store is a MemoryStore decorated with a circuit breaker.
type Store struct {
	inner   storage.MemoryStore
	breaker *gobreaker.TwoStepCircuitBreaker
	logger  *zap.Logger
}

var _ storage.MemoryStore = (*Store)(nil)

// New wraps inner. A nil logger disables state change logging.
func New(inner storage.MemoryStore, cfg Config, logger *zap.Logger) *Store {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "memory-store",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    0, // Don't clear counts periodically
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Store{
		inner:   inner,
		breaker: gobreaker.NewTwoStepCircuitBreaker(settings),
		logger:  logger,
	}
}

// State returns the breaker state: "closed", "open" or "half-open".
func (s *Store) State() string {
	return s.breaker.State().String()
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() storage.MemoryStore {
	return s.inner
}

// allow asks the breaker for permission and returns the completion callback.
func (s *Store) allow() (func(error), error) {
	done, err := s.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return func(err error) { done(healthy(err)) }, nil
}

// healthy reports whether err says nothing about backend health.
func healthy(err error) bool {
	return err == nil ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Put stores an entry through the breaker.
func (s *Store) Put(ctx context.Context, entry *storage.Entry) (string, error) {
	done, err := s.allow()
	if err != nil {
		return "", err
	}
	id, err := s.inner.Put(ctx, entry)
	done(err)
	return id, err
}

// Get retrieves an entry through the breaker. ErrNotFound does not count
// as a failure.
func (s *Store) Get(ctx context.Context, scope storage.Scope, id string) (*storage.Entry, error) {
	done, err := s.allow()
	if err != nil {
		return nil, err
	}
	entry, err := s.inner.Get(ctx, scope, id)
	done(err)
	return entry, err
}

// ListByScope asks the breaker once per iteration.
func (s *Store) ListByScope(ctx context.Context, scope storage.Scope) iter.Seq2[*storage.Entry, error] {
	return func(yield func(*storage.Entry, error) bool) {
		done, err := s.allow()
		if err != nil {
			yield(nil, err)
			return
		}

		var failure error
		defer func() { done(failure) }()

		for entry, err := range s.inner.ListByScope(ctx, scope) {
			if err != nil {
				failure = err
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

// FindBySummary delegates to the wrapped store's summary lookup, scanning
// the scope when it has none.
func (s *Store) FindBySummary(ctx context.Context, scope storage.Scope, summary string) ([]*storage.Entry, error) {
	done, err := s.allow()
	if err != nil {
		return nil, err
	}
	entries, err := storage.FindBySummary(ctx, s.inner, scope, summary)
	done(err)
	return entries, err
}

// ListScopes lists the agent's scopes through the breaker.
func (s *Store) ListScopes(ctx context.Context, agentID string) ([]storage.Scope, error) {
	done, err := s.allow()
	if err != nil {
		return nil, err
	}
	scopes, err := s.inner.ListScopes(ctx, agentID)
	done(err)
	return scopes, err
}

// Touch records an access through the breaker.
func (s *Store) Touch(ctx context.Context, scope storage.Scope, id string, at time.Time) (bool, error) {
	done, err := s.allow()
	if err != nil {
		return false, err
	}
	ok, err := s.inner.Touch(ctx, scope, id, at)
	done(err)
	return ok, err
}

// Delete removes an entry through the breaker.
func (s *Store) Delete(ctx context.Context, scope storage.Scope, id string) (bool, error) {
	done, err := s.allow()
	if err != nil {
		return false, err
	}
	ok, err := s.inner.Delete(ctx, scope, id)
	done(err)
	return ok, err
}

// DeleteBatch counts as a failure when the batch errors outright or when
// every requested id failed.
func (s *Store) DeleteBatch(ctx context.Context, scope storage.Scope, ids []string) (*storage.DeleteBatchResult, error) {
	done, err := s.allow()
	if err != nil {
		return nil, err
	}
	result, err := s.inner.DeleteBatch(ctx, scope, ids)

	outcome := err
	if outcome == nil && result != nil && len(ids) > 0 && len(result.Failed) == len(ids) {
		for _, failure := range result.Failed {
			outcome = failure
			break
		}
	}
	done(outcome)
	return result, err
}

// Close closes the wrapped store. It bypasses the breaker.
func (s *Store) Close() error {
	return s.inner.Close()
}
