package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the default buffer size for async writers.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout is the maximum time to wait for pending writes during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// AsyncWriterConfig holds configuration for an AsyncWriter.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending writes
	ChannelCapacity int
	// OnError receives handler errors (optional)
	OnError func(error)
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{ChannelCapacity: DefaultChannelCapacity}
}

// AsyncWriter hands items to a handler on a background goroutine. Write
// never blocks: when the buffer is full the item is dropped and counted.
type AsyncWriter[T any] struct {
	writeChan chan T
	handler   func(T) error
	onError   func(error)
	dropped   atomic.Int64
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	mu        sync.Mutex
}

// NewAsyncWriter creates a writer. Start must be called before items are
// processed.
func NewAsyncWriter[T any](handler func(T) error, config AsyncWriterConfig) *AsyncWriter[T] {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter[T]{
		writeChan: make(chan T, config.ChannelCapacity),
		handler:   handler,
		onError:   config.OnError,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins background processing. Calling it twice is a no-op.
func (w *AsyncWriter[T]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter[T]) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainChannel()
			return
		case item := <-w.writeChan:
			w.handle(item)
		}
	}
}

// drainChannel processes whatever is still buffered.
func (w *AsyncWriter[T]) drainChannel() {
	for {
		select {
		case item := <-w.writeChan:
			w.handle(item)
		default:
			return
		}
	}
}

func (w *AsyncWriter[T]) handle(item T) {
	if err := w.handler(item); err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Write queues item. It returns false when the buffer is full or the
// writer is stopped.
func (w *AsyncWriter[T]) Write(item T) bool {
	if w.ctx.Err() != nil {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.writeChan <- item:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Pending returns the number of buffered items.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.writeChan)
}

// Dropped returns how many items Write rejected.
func (w *AsyncWriter[T]) Dropped() int64 {
	return w.dropped.Load()
}

// Stop drains pending items and waits for the goroutine to exit.
func (w *AsyncWriter[T]) Stop() {
	w.cancel()
	w.wg.Wait()
}

// StopWithTimeout is Stop bounded by timeout. It reports whether the
// drain finished in time.
func (w *AsyncWriter[T]) StopWithTimeout(timeout time.Duration) bool {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
