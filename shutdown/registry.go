// Package shutdown coordinates graceful shutdown of the serve command:
// in-flight extractions finish, then registered closers run in order.
package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func releases one resource. It should give up when ctx is done.
type Func func(ctx context.Context) error

// Priorities used by the serve command. Lower runs first.
const (
	PriorityServer  = 10 // stop accepting uploads
	PriorityWorkers = 20 // drain async writers
	PriorityStorage = 30 // close the history database
	PriorityLogs    = 90 // flush the logger last
)

type entry struct {
	name     string
	fn       Func
	priority int
}

// Registry holds closers ordered by priority. Registration order breaks
// ties.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Registering after Run is a no-op.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.entries = append(r.entries, entry{name: name, fn: fn, priority: priority})
}

func (r *Registry) sorted() []entry {
	out := make([]entry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].priority < out[j].priority
	})
	return out
}

// Run calls every closer once, in priority order, and collects their
// errors. A panicking closer is reported as an error and does not stop
// the rest. Later calls return nil.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := runOne(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func runOne(ctx context.Context, e entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: panic: %v", e.name, rec)
		}
	}()
	if err := e.fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}

// Names lists registered closers in the order Run calls them.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.sorted()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}
