package shutdown

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"

	"medextract/core"
)

func TestRegistry_RunsInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	add := func(name string, priority int) {
		r.Register(name, priority, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	add("database", PriorityStorage)
	add("server", PriorityServer)
	add("logs", PriorityLogs)
	add("writer", PriorityWorkers)
	add("sink", PriorityWorkers)

	want := []string{"server", "writer", "sink", "database", "logs"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if errs := r.Run(context.Background()); len(errs) != 0 {
		t.Fatalf("Run() errors = %v", errs)
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("run order = %v, want %v", order, want)
	}
}

func TestRegistry_CollectsErrorsAndPanics(t *testing.T) {
	r := NewRegistry()
	ran := false
	r.Register("failing", 1, func(context.Context) error { return errors.New("disk full") })
	r.Register("panicking", 2, func(context.Context) error { panic("oops") })
	r.Register("last", 3, func(context.Context) error { ran = true; return nil })

	errs := r.Run(context.Background())

	if len(errs) != 2 {
		t.Fatalf("Run() returned %d errors, want 2: %v", len(errs), errs)
	}
	if !ran {
		t.Error("closer after a panic did not run")
	}
	if errs := r.Run(context.Background()); errs != nil {
		t.Errorf("second Run() = %v, want nil", errs)
	}
}

func TestRegistry_RegisterAfterRunIgnored(t *testing.T) {
	r := NewRegistry()
	r.Run(context.Background())
	r.Register("late", 1, func(context.Context) error { return nil })
	if len(r.Names()) != 0 {
		t.Errorf("Names() = %v, want empty", r.Names())
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	if !tr.Start() || !tr.Start() {
		t.Fatal("Start() = false on open tracker")
	}
	if tr.Active() != 2 {
		t.Errorf("Active() = %d, want 2", tr.Active())
	}

	tr.Close()
	if tr.Start() {
		t.Error("Start() = true after Close")
	}
	if err := tr.Wait(10 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Wait() = %v, want ErrWaitTimeout", err)
	}

	tr.Done()
	tr.Done()
	if err := tr.Wait(time.Second); err != nil {
		t.Errorf("Wait() = %v after all Done", err)
	}
	if !tr.Closed() || tr.Active() != 0 {
		t.Errorf("Closed() = %v, Active() = %d", tr.Closed(), tr.Active())
	}
}

func TestManager_ShutdownWaitsForTrackedWork(t *testing.T) {
	m := NewManager(nil, WithTimeout(5*time.Second))

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	m.Register("history", PriorityStorage, func(context.Context) error {
		record("closed")
		return nil
	})

	started := make(chan struct{})
	release := make(chan struct{})
	go m.Track(func() error {
		close(started)
		<-release
		record("extraction done")
		return nil
	})
	<-started

	done := make(chan error)
	go func() { done <- m.Shutdown() }()

	select {
	case <-m.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("Context not cancelled by Shutdown")
	}
	if err := m.Track(func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Track() after shutdown = %v, want ErrClosed", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"extraction done", "closed"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestManager_ShutdownReportsHandlerErrors(t *testing.T) {
	m := NewManager(nil)
	m.Register("broken", PriorityWorkers, func(context.Context) error { return errors.New("stuck") })

	if err := m.Shutdown(); err == nil {
		t.Error("Shutdown() = nil, want error from handler")
	}
}

func TestManager_Signals(t *testing.T) {
	exitCode := -1
	m := NewManager(nil, WithForceExit(func(code int) { exitCode = code }))

	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode() before signals = %d", m.ExitCode())
	}

	m.handleSignal(syscall.SIGTERM)
	if m.Context().Err() == nil {
		t.Error("first signal did not cancel Context")
	}
	if exitCode != -1 {
		t.Error("first signal forced exit")
	}
	if m.ExitCode() != core.ExitCodeSIGTERM {
		t.Errorf("ExitCode() = %d, want %d", m.ExitCode(), core.ExitCodeSIGTERM)
	}

	m.handleSignal(syscall.SIGINT)
	if exitCode != core.ExitCodeSIGINT {
		t.Errorf("forced exit code = %d, want %d", exitCode, core.ExitCodeSIGINT)
	}
}

func TestManager_Trigger(t *testing.T) {
	m := NewManager(nil)
	m.Trigger()
	if m.Context().Err() == nil {
		t.Error("Trigger() did not cancel Context")
	}
}
