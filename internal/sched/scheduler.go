// Package sched provides a small scheduler of named, cancellable timers.
//
// The gateway runs several timer-driven side effects per widget session —
// silence cutoff, feedback auto-accept, the submitted-state display delay,
// and the page inactivity redirect. Coordinating those with bare
// [time.AfterFunc] calls scattered across the session makes the "every timer
// is cancelled on every exit path" invariant easy to break. The scheduler
// owns every pending timer under a purpose key, so starting a key replaces
// any pending timer for it and a single [Scheduler.StopAll] on teardown is
// provably complete.
package sched

import (
	"sync"
	"time"
)

// Purpose keys used by the gateway. Callers may introduce their own keys;
// these constants just keep the well-known ones in one place.
const (
	TimerSilence        = "silence"
	TimerAutoAccept     = "feedback_auto_accept"
	TimerSubmittedDelay = "feedback_submitted_delay"
	TimerInactivity     = "inactivity_redirect"
)

// Scheduler owns a set of named one-shot timers. All methods are safe for
// concurrent use. A stopped scheduler silently ignores further Start calls,
// so teardown races cannot resurrect timers.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Start schedules fn to run after d under the given purpose key. Any pending
// timer for the same key is cancelled first, so at most one timer per
// purpose is ever live. fn runs on its own goroutine; by the time it runs,
// the key has already been released and may be started again from inside fn.
func (s *Scheduler) Start(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		// Release the key only if it still points at this timer; a
		// replacement started between firing and this callback must
		// survive.
		s.mu.Lock()
		if cur, ok := s.timers[key]; ok && cur == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = t
}

// Stop cancels the pending timer for key, if any. It reports whether a
// timer was actually cancelled before firing.
func (s *Scheduler) Stop(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return t.Stop()
}

// Pending reports whether a timer for key is scheduled and has not fired.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// StopAll cancels every pending timer and marks the scheduler stopped;
// subsequent Start calls are no-ops. Intended for session teardown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
