// Package resilience protects the gateway's calls to the campus assistant
// backend with a three-state circuit breaker (closed → open → half-open).
// When the backend is down, widget requests fail fast with a localized
// inline error instead of stacking up behind a dead connection.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] when the breaker is open and
// the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is a [Breaker]'s operating mode.
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls immediately with [ErrCircuitOpen].
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through after the
	// reset timeout; their outcome decides between closing and re-opening.
	StateHalfOpen
)

// String returns the state's log name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take the documented defaults.
type Config struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures before the breaker
	// opens. Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 15s.
	ResetTimeout time.Duration

	// HalfOpenProbes is how many probe calls the half-open state allows.
	// Default: 2.
	HalfOpenProbes int
}

// Breaker is a three-state circuit breaker. Besides the classic behavior it
// knows one domain rule: a call that fails with [context.Canceled] was
// aborted by the user (stop-generation, navigation away) and says nothing
// about backend health, so it never counts as a failure.
//
// Breaker is safe for concurrent use.
type Breaker struct {
	name           string
	maxFailures    int
	resetTimeout   time.Duration
	halfOpenProbes int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// New creates a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 15 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 2
	}
	return &Breaker{
		name:           cfg.Name,
		maxFailures:    cfg.MaxFailures,
		resetTimeout:   cfg.ResetTimeout,
		halfOpenProbes: cfg.HalfOpenProbes,
	}
}

// Do runs fn if the breaker allows it, returning [ErrCircuitOpen] otherwise.
// fn's error is returned unchanged; cancellation errors pass through without
// affecting the breaker's accounting.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeFails = 0
		slog.Info("breaker half-open", "name", b.name)
	case StateHalfOpen:
		if b.probes >= b.halfOpenProbes {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case errors.Is(err, context.Canceled):
		// User abort: not a health signal either way. Undo the probe slot
		// so an aborted probe does not consume the half-open budget.
		if probing {
			b.probes--
		}
	case err != nil:
		b.onFailure(probing)
	default:
		b.onSuccess(probing)
	}
	return err
}

// State returns the breaker's effective state; an open breaker whose reset
// timeout has elapsed reports half-open (the transition happens on the next
// Do call).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		b.probeFails++
		b.state = StateOpen
		b.failures = b.maxFailures
		slog.Warn("breaker re-opened after failed probe", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = StateOpen
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.probes-b.probeFails >= b.halfOpenProbes {
			b.state = StateClosed
			b.failures = 0
			b.probes = 0
			b.probeFails = 0
			slog.Info("breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failures = 0
}
