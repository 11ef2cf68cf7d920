package shutdown

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when work is offered after shutdown began.
var ErrClosed = errors.New("shutting down")

// ErrWaitTimeout is returned when in-flight work outlives the wait.
var ErrWaitTimeout = errors.New("in-flight operations did not finish in time")

// Tracker counts in-flight operations so shutdown can wait for them.
//
//	if !tracker.Start() {
//	    return ErrClosed
//	}
//	defer tracker.Done()
type Tracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	active int
	closed bool
}

// NewTracker returns an open Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start registers one operation. It returns false once Close was called;
// callers must call Done exactly once after a true return.
func (t *Tracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active++
	return true
}

// Done finishes an operation started with Start.
func (t *Tracker) Done() {
	t.mu.Lock()
	t.active--
	t.mu.Unlock()
	t.wg.Done()
}

// Close rejects new operations. Running ones continue.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Wait blocks until every started operation is done or timeout passes.
func (t *Tracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Active returns the number of running operations.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Closed reports whether Close was called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
