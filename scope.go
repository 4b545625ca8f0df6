package testhost

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/testhost/internal/cache"
	"github.com/xraph/testhost/internal/drain"
	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/logger"
)

// ScopeState is the lifecycle state of one scope.
type ScopeState int

const (
	// ScopeNotStarted means the scope exists but Begin has not run.
	ScopeNotStarted ScopeState = iota
	// ScopeActive means hooks are installed and resolution is live.
	ScopeActive
	// ScopeTearingDown means End is draining and disposing.
	ScopeTearingDown
	// ScopeClosed means teardown finished and the baseline is restored.
	ScopeClosed
)

// String returns a human-readable representation of the scope state.
func (s ScopeState) String() string {
	switch s {
	case ScopeNotStarted:
		return "not_started"
	case ScopeActive:
		return "active"
	case ScopeTearingDown:
		return "tearing_down"
	case ScopeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Scope is the isolation unit bound to one test execution. It owns the
// containers created during the test and nothing else; process-wide state
// stays on the Host and is restored when the scope ends.
type Scope struct {
	id        string
	host      *Host
	cache     *cache.Cache
	startedAt time.Time
	log       logger.Logger

	spanCtx context.Context
	span    trace.Span

	mu    sync.Mutex
	state ScopeState
}

// Begin starts a new scope: installs the hook overrides pointing at the
// scope's container cache, enables operation tracking, and transitions to
// Active. Beginning while another scope is active is a caller error.
func (h *Host) Begin() (*Scope, error) {
	s := &Scope{
		id:    uuid.NewString(),
		host:  h,
		state: ScopeNotStarted,
	}
	s.log = h.log.With(logger.String("scope", s.id))
	s.cache = cache.New(h.builder, h.cell, s.log, h.rec)

	// Hook installation strictly precedes any resolution in the scope;
	// the registry enforces the single-active-scope rule.
	if err := h.hooks.Install(s.id, s.cache.GetOrCreatePrimary, s.cache.GetOrCreateRemote); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.active = s
	h.mu.Unlock()

	h.tracing.SetEnabled(true)
	h.rec.ScopeStarted()

	s.spanCtx, s.span = h.tracer.Start(context.Background(), "testhost.scope",
		trace.WithAttributes(attribute.String("testhost.scope_id", s.id)))

	s.startedAt = time.Now()
	s.setState(ScopeActive)
	s.log.Debug("scope started")
	return s, nil
}

// ID returns the scope's identifier.
func (s *Scope) ID() string { return s.id }

// StartedAt returns when the scope became active.
func (s *Scope) StartedAt() time.Time { return s.startedAt }

// State returns the scope's current lifecycle state.
func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scope) setState(state ScopeState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// End tears the scope down. It always restores the baseline (hooks bound
// to the failing stubs, tracking off, caches cleared) even when drain or
// disposal fail, and reports those failures instead of swallowing them.
//
// Teardown order: purge and drain pending work, dispose containers, reset
// hooks, clear process-wide state. A scope that never created a container
// skips the drain, since nothing was tracked. End on an already-closed
// scope is a no-op.
func (s *Scope) End() error {
	s.mu.Lock()
	if s.state != ScopeActive {
		s.mu.Unlock()
		return nil
	}
	s.state = ScopeTearingDown
	s.mu.Unlock()

	h := s.host

	defer func() {
		h.hooks.Reset()
		h.tracing.SetEnabled(false)
		h.tracing.Reset()

		h.mu.Lock()
		h.active = nil
		h.mu.Unlock()

		h.rec.ScopeEnded()
		s.setState(ScopeClosed)
		s.span.End()
		s.log.Debug("scope closed", logger.Duration("lifetime", time.Since(s.startedAt)))
	}()

	var drainErr error
	if s.cache.Primary() != nil {
		drainErr = s.drainPending()
	}

	disposeErr := s.cache.DisposeAll()
	if disposeErr != nil {
		s.log.Error("container disposal failed", logger.Err(disposeErr))
		recordSpanError(s.span, disposeErr)
	}

	return errors.Join(drainErr, disposeErr)
}

func (s *Scope) drainPending() error {
	_, span := s.host.tracer.Start(s.spanCtx, "testhost.drain")
	defer span.End()

	controller := drain.NewController(drain.Config{
		CleanupTimeout: s.host.opts.CleanupTimeout,
		PollInterval:   s.host.opts.PollInterval,
		Queue:          s.host.queue,
		Logger:         s.log,
		Recorder:       s.host.rec,
	})

	err := controller.Drain(s.host.tracing.List())
	span.SetAttributes(attribute.String("testhost.drain_state", controller.State().String()))
	if err != nil {
		recordSpanError(span, err)
		recordSpanError(s.span, err)
	}
	return err
}

// Before starts a scope for tb and registers its teardown with tb.Cleanup,
// so the scope ends exactly once when the test finishes, pass or fail.
// Teardown failures fail the test even if its body passed.
func (h *Host) Before(tb testing.TB) *Scope {
	tb.Helper()

	s, err := h.Begin()
	if err != nil {
		tb.Fatalf("testhost: failed to start scope: %v", err)
	}

	tb.Cleanup(func() {
		if err := s.End(); err != nil {
			tb.Fatalf("testhost: scope teardown failed: %v", err)
		}
	})

	return s
}

// After ends the scope explicitly, for runners that bracket tests
// themselves instead of using tb.Cleanup.
func (h *Host) After(tb testing.TB, s *Scope) {
	tb.Helper()
	if err := s.End(); err != nil {
		tb.Fatalf("testhost: scope teardown failed: %v", err)
	}
}

// Run brackets fn in its own scope.
func (h *Host) Run(tb testing.TB, fn func(s *Scope)) {
	tb.Helper()
	s := h.Before(tb)
	fn(s)
}
