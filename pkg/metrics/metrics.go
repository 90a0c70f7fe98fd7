// Package metrics exposes Prometheus instrumentation for the memory engine.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "recallmem"

// Recorder holds the engine's collectors.
type Recorder struct {
	recallTotal    prometheus.Counter
	recallMatches  prometheus.Histogram
	cleanupDeleted *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
	entriesAdded   *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg. An empty
// namespace uses DefaultNamespace.
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		recallTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_total",
			Help:      "Number of recall operations served.",
		}),
		recallMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_matches",
			Help:      "Number of entries matching a recall before truncation.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Entries deleted by cleanup, by retention bound.",
		}, []string{"reason"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Failed store calls, by operation.",
		}, []string{"op"}),
		entriesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_added_total",
			Help:      "Entries written, by entry type.",
		}, []string{"type"}),
	}

	for _, c := range []prometheus.Collector{
		r.recallTotal, r.recallMatches, r.cleanupDeleted, r.storageErrors, r.entriesAdded,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ObserveRecall records one recall and its match count.
func (r *Recorder) ObserveRecall(matches int) {
	if r == nil {
		return
	}
	r.recallTotal.Inc()
	r.recallMatches.Observe(float64(matches))
}

// AddCleanupDeleted adds n deletions attributed to reason.
func (r *Recorder) AddCleanupDeleted(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cleanupDeleted.WithLabelValues(reason).Add(float64(n))
}

// IncStorageError counts a failed store call.
func (r *Recorder) IncStorageError(op string) {
	if r == nil {
		return
	}
	r.storageErrors.WithLabelValues(op).Inc()
}

// IncEntriesAdded counts a written entry.
func (r *Recorder) IncEntriesAdded(entryType string) {
	if r == nil {
		return
	}
	r.entriesAdded.WithLabelValues(entryType).Inc()
}
