package db

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestCleanup_DeletesOldRuns verifies that only runs past retention go.
func TestCleanup_DeletesOldRuns(t *testing.T) {
	database := openTestDatabase(t)
	store := NewHistoryStore(database, nil)
	defer store.Close()
	ctx := context.Background()

	store.Insert(ctx, testRun("old", time.Now().AddDate(0, 0, -45), true))
	store.Insert(ctx, testRun("recent", time.Now().AddDate(0, 0, -5), true))

	result, err := database.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if result.RunsDeleted != 1 {
		t.Errorf("RunsDeleted = %d, want 1", result.RunsDeleted)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 1 || runs[0].RequestID != "recent" {
		t.Errorf("remaining runs = %+v, want only recent", runs)
	}
}

// TestCleanup_ZeroRetentionKeepsEverything verifies the disabled setting.
func TestCleanup_ZeroRetentionKeepsEverything(t *testing.T) {
	database := openTestDatabase(t)
	store := NewHistoryStore(database, nil)
	defer store.Close()
	ctx := context.Background()

	store.Insert(ctx, testRun("ancient", time.Now().AddDate(-2, 0, 0), true))

	result, err := database.Cleanup(ctx, 0)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if result.RunsDeleted != 0 {
		t.Errorf("RunsDeleted = %d, want 0", result.RunsDeleted)
	}
}

// TestCleanup_InvalidInput verifies argument and context checks.
func TestCleanup_InvalidInput(t *testing.T) {
	database := openTestDatabase(t)

	if _, err := database.Cleanup(context.Background(), -1); err == nil {
		t.Error("Cleanup(-1) expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := database.Cleanup(ctx, 30); err == nil {
		t.Error("Cleanup() with cancelled context expected error")
	}
}

// TestStartCleanupScheduler verifies the initial run and the callback.
func TestStartCleanupScheduler(t *testing.T) {
	database := openTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	done := make(chan struct{}, 1)
	database.StartCleanupScheduler(ctx, CleanupSchedulerConfig{
		RetentionDays: 30,
		Interval:      time.Hour,
		OnCleanup: func(result CleanupResult, err error) {
			if err != nil {
				t.Errorf("cleanup error = %v", err)
			}
			if atomic.AddInt32(&calls, 1) == 1 {
				done <- struct{}{}
			}
		},
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("initial cleanup did not run")
	}
}
