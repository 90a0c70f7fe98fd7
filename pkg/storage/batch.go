package storage

import (
	"context"
	"strings"
)

// DeleteFunc deletes one entry and reports whether it existed.
type DeleteFunc func(ctx context.Context, scope Scope, id string) (bool, error)

// DeleteEach runs del for every id and classifies the outcomes. Once ctx is
// done the remaining ids are reported as failed with the context error.
func DeleteEach(ctx context.Context, scope Scope, ids []string, del DeleteFunc) *DeleteBatchResult {
	result := &DeleteBatchResult{
		Deleted: make([]string, 0, len(ids)),
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.fail(id, err)
			continue
		}

		removed, err := del(ctx, scope, id)
		switch {
		case err != nil:
			result.fail(id, err)
		case removed:
			result.Deleted = append(result.Deleted, id)
		default:
			result.Missing = append(result.Missing, id)
		}
	}

	return result
}

func (r *DeleteBatchResult) fail(id string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[id] = err
}

// SummaryFinder is implemented by stores that can look up entries by exact
// summary text (case and whitespace insensitive) without scanning the scope.
type SummaryFinder interface {
	FindBySummary(ctx context.Context, scope Scope, summary string) ([]*Entry, error)
}

// NormalizeSummary lower-cases summary and collapses runs of whitespace.
func NormalizeSummary(summary string) string {
	return strings.Join(strings.Fields(strings.ToLower(summary)), " ")
}

// FindBySummary uses the store's SummaryFinder when it has one and falls back
// to scanning the scope otherwise.
func FindBySummary(ctx context.Context, store MemoryStore, scope Scope, summary string) ([]*Entry, error) {
	if finder, ok := store.(SummaryFinder); ok {
		return finder.FindBySummary(ctx, scope, summary)
	}

	want := NormalizeSummary(summary)
	var out []*Entry
	for entry, err := range store.ListByScope(ctx, scope) {
		if err != nil {
			return nil, err
		}
		if NormalizeSummary(entry.Summary) == want {
			out = append(out, entry)
		}
	}
	return out, nil
}
