package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medextract/core"
	"medextract/logging"
)

// DefaultTimeout bounds the whole shutdown sequence. It leaves room for
// one model call to finish.
const DefaultTimeout = 2 * time.Minute

// Manager ties together a Tracker for in-flight extractions, a Registry of
// closers and signal handling. The first SIGINT/SIGTERM cancels Context;
// a second one exits immediately.
//
//	m := shutdown.NewManager(logger)
//	m.Register("history", shutdown.PriorityStorage, func(ctx context.Context) error {
//	    return store.Close()
//	})
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger    *logging.Logger
	timeout   time.Duration
	forceExit func(code int)

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *Tracker
	registry *Registry

	mu       sync.Mutex
	started  bool
	done     bool
	signals  int
	lastSig  os.Signal
	sigChan  chan os.Signal
	stopOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithForceExit replaces os.Exit for the second-signal path.
func WithForceExit(fn func(code int)) Option {
	return func(m *Manager) { m.forceExit = fn }
}

// NewManager returns a Manager. Call Start to listen for signals.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:    logger.Named("shutdown"),
		timeout:   DefaultTimeout,
		forceExit: os.Exit,
		ctx:       ctx,
		cancel:    cancel,
		tracker:   NewTracker(),
		registry:  NewRegistry(),
		sigChan:   make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a closer. See the Priority constants.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	m.mu.Lock()
	m.signals++
	m.lastSig = sig
	count := m.signals
	m.mu.Unlock()

	if count == 1 {
		m.logger.Info("Received shutdown signal, finishing in-flight work",
			zap.String("signal", sig.String()))
		m.cancel()
		return
	}
	m.logger.Warn("Received second signal, forcing exit")
	m.forceExit(exitCodeFor(sig))
}

// Trigger begins shutdown without a signal, e.g. when the server fails.
func (m *Manager) Trigger() {
	m.cancel()
}

// Track runs fn as an in-flight operation. After shutdown began it
// returns ErrClosed without calling fn.
func (m *Manager) Track(fn func() error) error {
	if !m.tracker.Start() {
		return ErrClosed
	}
	defer m.tracker.Done()
	return fn()
}

// Active returns the number of running tracked operations.
func (m *Manager) Active() int {
	return m.tracker.Active()
}

// Shutdown cancels Context, waits for tracked work and runs the closers
// within the timeout. Only the first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	m.mu.Unlock()

	start := time.Now()
	m.cancel()
	m.tracker.Close()

	if n := m.tracker.Active(); n > 0 {
		m.logger.Info("Waiting for in-flight extractions", zap.Int("active", n))
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("In-flight extractions did not finish",
			zap.Int("remaining", m.tracker.Active()),
			zap.Duration("waited", time.Since(start)))
	}

	remaining := max(m.timeout-time.Since(start), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Info("Running shutdown handlers", zap.Strings("handlers", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Shutdown handler failed", zap.Error(err))
	}

	m.stopOnce.Do(func() {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown finished with %d errors: %w", len(errs), errors.Join(errs...))
	}
	m.logger.Info("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// ExitCode is the conventional exit code for the signal that started
// shutdown, or ExitCodeSuccess when none did.
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSig == nil {
		return core.ExitCodeSuccess
	}
	return exitCodeFor(m.lastSig)
}

func exitCodeFor(sig os.Signal) int {
	if sig == syscall.SIGTERM {
		return core.ExitCodeSIGTERM
	}
	return core.ExitCodeSIGINT
}
