package metrics

import (
	"sync"
	"time"

	"medextract/pipeline"
)

// StoreConfig configures the Store.
type StoreConfig struct {
	// RecentCapacity is the max number of runs kept for Snapshot.Recent
	RecentCapacity int
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{RecentCapacity: 50}
}

// Store aggregates pipeline runs in memory. It implements
// pipeline.RunRecorder and is safe for concurrent use.
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	opts.Recorder = store
//	snap := store.Snapshot(10)
type Store struct {
	mu sync.RWMutex

	// ring of recent runs
	recent []RunRecord
	head   int
	size   int

	totalRuns       int64
	totalSuccess    int64
	totalFailures   int64
	totalDuration   time.Duration
	maxDuration     time.Duration
	totalPages      int64
	totalRedactions int64
	degradedRuns    int64
	failures        map[string]int64

	startTime time.Time
	now       func() time.Time
}

// NewStore creates a Store. startTime is used to report uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.RecentCapacity
	if capacity < 1 {
		capacity = DefaultStoreConfig().RecentCapacity
	}
	return &Store{
		recent:    make([]RunRecord, capacity),
		failures:  make(map[string]int64),
		startTime: startTime,
		now:       time.Now,
	}
}

// RecordRun adds one run to the aggregates.
func (s *Store) RecordRun(summary pipeline.RunSummary) {
	rec := RunRecord{
		RequestID:     summary.RequestID,
		StartedAt:     summary.StartedAt,
		Duration:      summary.Duration,
		Outcome:       OutcomeSuccess,
		ErrorCategory: summary.ErrorCategory,
		Pages:         summary.Pages,
		Redactions:    summary.Redactions,
		Degraded:      summary.DroppedItems > 0 || summary.UnknownStatuses > 0,
	}
	if !summary.Success {
		rec.Outcome = OutcomeFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent[s.head] = rec
	s.head = (s.head + 1) % len(s.recent)
	if s.size < len(s.recent) {
		s.size++
	}

	s.totalRuns++
	if summary.Success {
		s.totalSuccess++
	} else {
		s.totalFailures++
		category := summary.ErrorCategory
		if category == "" {
			category = string(pipeline.CategoryInternal)
		}
		s.failures[category]++
	}
	s.totalDuration += summary.Duration
	if summary.Duration > s.maxDuration {
		s.maxDuration = summary.Duration
	}
	s.totalPages += int64(summary.Pages)
	s.totalRedactions += int64(summary.Redactions)
	if rec.Degraded {
		s.degradedRuns++
	}
}

// Snapshot returns the aggregates and up to limit recent runs, newest first.
func (s *Store) Snapshot(limit int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TotalRuns:       s.totalRuns,
		TotalSuccess:    s.totalSuccess,
		TotalFailures:   s.totalFailures,
		MaxDuration:     s.maxDuration,
		TotalPages:      s.totalPages,
		TotalRedactions: s.totalRedactions,
		DegradedRuns:    s.degradedRuns,
		Failures:        make(map[string]*CategoryMetrics, len(s.failures)),
		Uptime:          s.now().Sub(s.startTime).Round(time.Second).String(),
		Recent:          s.recentLocked(limit),
	}
	if s.totalRuns > 0 {
		snap.SuccessRate = float64(s.totalSuccess) / float64(s.totalRuns) * 100
		snap.AvgDuration = s.totalDuration / time.Duration(s.totalRuns)
	}
	for category, count := range s.failures {
		snap.Failures[category] = &CategoryMetrics{Count: count}
	}
	return snap
}

func (s *Store) recentLocked(limit int) []RunRecord {
	if limit <= 0 || s.size == 0 {
		return []RunRecord{}
	}
	if limit > s.size {
		limit = s.size
	}
	out := make([]RunRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + len(s.recent)) % len(s.recent)
		out[i] = s.recent[idx]
	}
	return out
}
