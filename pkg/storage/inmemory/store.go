// Package inmemory provides a map-backed storage.MemoryStore.
//
// It is intended for tests, examples and short-lived agents. Nothing is
// persisted across restarts.
package inmemory

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Store is a simple in-memory implementation of storage.MemoryStore.
type Store struct {
	mu      sync.RWMutex
	entries map[storage.Scope]map[string]*storage.Entry
	ids     *storage.IDGenerator
	closed  bool
}

// NewStore creates a new in-memory store using the given snowflake node for ids.
func NewStore(nodeID int64) (*Store, error) {
	ids, err := storage.NewIDGenerator(nodeID)
	if err != nil {
		return nil, err
	}
	return &Store{
		entries: make(map[storage.Scope]map[string]*storage.Entry),
		ids:     ids,
	}, nil
}

// Put saves a copy of the entry.
func (s *Store) Put(ctx context.Context, entry *storage.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", storage.ErrUnavailable
	}

	storage.Prepare(entry, s.ids)

	scope := entry.Scope()
	bucket, ok := s.entries[scope]
	if !ok {
		bucket = make(map[string]*storage.Entry)
		s.entries[scope] = bucket
	}
	bucket[entry.ID] = entry.Clone()

	return entry.ID, nil
}

// Get returns a copy of the entry.
func (s *Store) Get(ctx context.Context, scope storage.Scope, id string) (*storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrUnavailable
	}

	entry, ok := s.entries[scope][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return entry.Clone(), nil
}

// FindBySummary returns the entries of the scope with the same normalized summary.
func (s *Store) FindBySummary(ctx context.Context, scope storage.Scope, summary string) ([]*storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := storage.NormalizeSummary(summary)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Entry
	for _, entry := range s.entries[scope] {
		if storage.NormalizeSummary(entry.Summary) == want {
			out = append(out, entry.Clone())
		}
	}
	return out, nil
}

// ListByScope yields copies of the scope's entries as of the start of each
// iteration.
func (s *Store) ListByScope(ctx context.Context, scope storage.Scope) iter.Seq2[*storage.Entry, error] {
	return func(yield func(*storage.Entry, error) bool) {
		snapshot, err := s.snapshot(scope)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, entry := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (s *Store) snapshot(scope storage.Scope) ([]*storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrUnavailable
	}

	bucket := s.entries[scope]
	out := make([]*storage.Entry, 0, len(bucket))
	for _, entry := range bucket {
		out = append(out, entry.Clone())
	}
	return out, nil
}

// ListScopes returns the non-empty scopes of the agent, ordered by user id.
func (s *Store) ListScopes(ctx context.Context, agentID string) ([]storage.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrUnavailable
	}

	var scopes []storage.Scope
	for scope, bucket := range s.entries {
		if scope.AgentID == agentID && len(bucket) > 0 {
			scopes = append(scopes, scope)
		}
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].UserID < scopes[j].UserID })
	return scopes, nil
}

// Touch increments frequency and moves LastAccessed forward.
func (s *Store) Touch(ctx context.Context, scope storage.Scope, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, storage.ErrUnavailable
	}

	entry, ok := s.entries[scope][id]
	if !ok {
		return false, nil
	}
	entry.Frequency++
	if at.After(entry.LastAccessed) {
		entry.LastAccessed = at
	}
	return true, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, scope storage.Scope, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, storage.ErrUnavailable
	}

	bucket := s.entries[scope]
	if _, ok := bucket[id]; !ok {
		return false, nil
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(s.entries, scope)
	}
	return true, nil
}

// DeleteBatch deletes each id independently.
func (s *Store) DeleteBatch(ctx context.Context, scope storage.Scope, ids []string) (*storage.DeleteBatchResult, error) {
	return storage.DeleteEach(ctx, scope, ids, s.Delete), nil
}

// Close releases the entries. Later calls fail with storage.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}
