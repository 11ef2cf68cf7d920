package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"medextract/pipeline"
)

func success(id string, d time.Duration) pipeline.RunSummary {
	return pipeline.RunSummary{RequestID: id, Duration: d, Pages: 2, Redactions: 3, Success: true}
}

func failure(id, category string) pipeline.RunSummary {
	return pipeline.RunSummary{RequestID: id, Duration: time.Second, ErrorCategory: category}
}

func TestNewStore(t *testing.T) {
	t.Run("default capacity", func(t *testing.T) {
		store := NewStore(DefaultStoreConfig(), time.Now())
		if len(store.recent) != 50 {
			t.Errorf("expected capacity 50, got %d", len(store.recent))
		}
	})

	t.Run("zero capacity falls back to default", func(t *testing.T) {
		store := NewStore(StoreConfig{}, time.Now())
		if len(store.recent) != 50 {
			t.Errorf("expected capacity 50, got %d", len(store.recent))
		}
	})
}

func TestStore_Aggregates(t *testing.T) {
	store := NewStore(DefaultStoreConfig(), time.Now())

	store.RecordRun(success("a", 2*time.Second))
	store.RecordRun(success("b", 4*time.Second))
	store.RecordRun(failure("c", "timeout"))
	store.RecordRun(failure("d", "timeout"))
	store.RecordRun(failure("e", ""))

	snap := store.Snapshot(0)
	if snap.TotalRuns != 5 || snap.TotalSuccess != 2 || snap.TotalFailures != 3 {
		t.Errorf("totals = %d/%d/%d, want 5/2/3", snap.TotalRuns, snap.TotalSuccess, snap.TotalFailures)
	}
	if snap.SuccessRate != 40 {
		t.Errorf("success rate = %v, want 40", snap.SuccessRate)
	}
	if want := 9 * time.Second / 5; snap.AvgDuration != want {
		t.Errorf("avg duration = %v, want %v", snap.AvgDuration, want)
	}
	if snap.MaxDuration != 4*time.Second {
		t.Errorf("max duration = %v, want 4s", snap.MaxDuration)
	}
	if snap.TotalPages != 4 || snap.TotalRedactions != 6 {
		t.Errorf("pages/redactions = %d/%d, want 4/6", snap.TotalPages, snap.TotalRedactions)
	}
	if got := snap.Failures["timeout"]; got == nil || got.Count != 2 {
		t.Errorf("timeout failures = %+v, want 2", got)
	}
	if got := snap.Failures["internal_error"]; got == nil || got.Count != 1 {
		t.Errorf("uncategorized failures = %+v, want 1 internal_error", got)
	}
	if len(snap.Recent) != 0 {
		t.Errorf("recent = %d entries, want 0 for limit 0", len(snap.Recent))
	}
}

func TestStore_Degraded(t *testing.T) {
	store := NewStore(DefaultStoreConfig(), time.Now())

	s := success("a", time.Second)
	s.UnknownStatuses = 1
	store.RecordRun(s)
	store.RecordRun(success("b", time.Second))

	snap := store.Snapshot(2)
	if snap.DegradedRuns != 1 {
		t.Errorf("degraded runs = %d, want 1", snap.DegradedRuns)
	}
	if !snap.Recent[1].Degraded || snap.Recent[0].Degraded {
		t.Errorf("recent degraded flags = %+v", snap.Recent)
	}
}

func TestStore_RecentWrapsNewestFirst(t *testing.T) {
	store := NewStore(StoreConfig{RecentCapacity: 3}, time.Now())
	for i := 1; i <= 5; i++ {
		store.RecordRun(success(fmt.Sprintf("run-%d", i), time.Second))
	}

	recent := store.Snapshot(10).Recent
	if len(recent) != 3 {
		t.Fatalf("recent = %d entries, want 3", len(recent))
	}
	for i, want := range []string{"run-5", "run-4", "run-3"} {
		if recent[i].RequestID != want {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].RequestID, want)
		}
	}

	recent = store.Snapshot(1).Recent
	if len(recent) != 1 || recent[0].RequestID != "run-5" {
		t.Errorf("recent(1) = %+v, want run-5", recent)
	}
}

func TestStore_FailureOutcome(t *testing.T) {
	store := NewStore(DefaultStoreConfig(), time.Now())
	store.RecordRun(failure("x", "external_error"))

	rec := store.Snapshot(1).Recent[0]
	if rec.Outcome != OutcomeFailure || rec.ErrorCategory != "external_error" {
		t.Errorf("record = %+v", rec)
	}
}

func TestStore_Uptime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(DefaultStoreConfig(), start)
	store.now = func() time.Time { return start.Add(90 * time.Second) }

	if got := store.Snapshot(0).Uptime; got != "1m30s" {
		t.Errorf("uptime = %q, want 1m30s", got)
	}
}

func TestStore_Concurrent(t *testing.T) {
	store := NewStore(StoreConfig{RecentCapacity: 10}, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.RecordRun(success(fmt.Sprintf("%d-%d", i, j), time.Millisecond))
				store.Snapshot(5)
			}
		}(i)
	}
	wg.Wait()

	if got := store.Snapshot(0).TotalRuns; got != 1000 {
		t.Errorf("total runs = %d, want 1000", got)
	}
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordRun(pipeline.RunSummary) { c.n++ }

func TestFanout(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	var recorder pipeline.RunRecorder = Fanout{a, nil, b}

	recorder.RecordRun(success("a", time.Second))
	recorder.RecordRun(success("b", time.Second))

	if a.n != 2 || b.n != 2 {
		t.Errorf("counts = %d/%d, want 2/2", a.n, b.n)
	}
}
