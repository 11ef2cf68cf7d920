package db

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestAsyncWriterBasicWrite tests basic write and processing functionality.
func TestAsyncWriterBasicWrite(t *testing.T) {
	var mu sync.Mutex
	var received []string

	writer := NewAsyncWriter(func(s string) error {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
		return nil
	}, DefaultAsyncWriterConfig())
	writer.Start()

	for _, s := range []string{"first", "second", "third"} {
		if !writer.Write(s) {
			t.Errorf("Write(%q) returned false, expected true", s)
		}
	}

	writer.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("received %d items, want 3", len(received))
	}
	if received[0] != "first" || received[2] != "third" {
		t.Errorf("received = %v, want items in write order", received)
	}
}

// TestAsyncWriterDropsWhenFull tests that a full buffer rejects writes
// instead of blocking.
func TestAsyncWriterDropsWhenFull(t *testing.T) {
	var processed int64
	writer := NewAsyncWriter(func(int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 2})

	// Not started yet, so nothing drains the buffer.
	if !writer.Write(1) || !writer.Write(2) {
		t.Fatal("first two writes should be queued")
	}

	start := time.Now()
	if writer.Write(3) {
		t.Error("Write() on a full buffer returned true")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("Write() on a full buffer took %v, expected non-blocking", elapsed)
	}
	if writer.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", writer.Dropped())
	}
	if writer.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", writer.Pending())
	}

	writer.Start()
	writer.Stop()

	if atomic.LoadInt64(&processed) != 2 {
		t.Errorf("processed = %d, want 2", processed)
	}
}

// TestAsyncWriterStopDrains tests that Stop processes buffered items.
func TestAsyncWriterStopDrains(t *testing.T) {
	var processed int64
	writer := NewAsyncWriter(func(int) error {
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&processed, 1)
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 20})
	writer.Start()

	for i := 0; i < 20; i++ {
		writer.Write(i)
	}

	if !writer.StopWithTimeout(5 * time.Second) {
		t.Fatal("StopWithTimeout() timed out")
	}
	if atomic.LoadInt64(&processed) != 20 {
		t.Errorf("processed = %d, want 20", processed)
	}
	if writer.Write(21) {
		t.Error("Write() after Stop returned true")
	}
}

// TestAsyncWriterReportsErrors tests that handler errors reach OnError.
func TestAsyncWriterReportsErrors(t *testing.T) {
	var errs int64
	writer := NewAsyncWriter(func(int) error {
		return errors.New("disk full")
	}, AsyncWriterConfig{
		ChannelCapacity: 4,
		OnError:         func(error) { atomic.AddInt64(&errs, 1) },
	})
	writer.Start()
	writer.Write(1)
	writer.Write(2)
	writer.Stop()

	if atomic.LoadInt64(&errs) != 2 {
		t.Errorf("OnError called %d times, want 2", errs)
	}
}

// TestAsyncWriterStartTwice tests that a second Start is a no-op.
func TestAsyncWriterStartTwice(t *testing.T) {
	var processed int64
	writer := NewAsyncWriter(func(int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, DefaultAsyncWriterConfig())
	writer.Start()
	writer.Start()
	writer.Write(1)
	writer.Stop()

	if atomic.LoadInt64(&processed) != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
}
