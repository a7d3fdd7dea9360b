package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStart_FiresOnce(t *testing.T) {
	t.Parallel()

	s := New()
	fired := make(chan struct{})
	s.Start("k", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if s.Pending("k") {
		t.Error("fired timer must release its key")
	}
}

func TestStart_ReplacesPendingTimer(t *testing.T) {
	t.Parallel()

	s := New()
	var first, second atomic.Bool
	s.Start("k", 50*time.Millisecond, func() { first.Store(true) })
	s.Start("k", 10*time.Millisecond, func() { second.Store(true) })

	time.Sleep(150 * time.Millisecond)
	if first.Load() {
		t.Error("replaced timer must not fire")
	}
	if !second.Load() {
		t.Error("replacement timer must fire")
	}
}

func TestStop_CancelsPendingTimer(t *testing.T) {
	t.Parallel()

	s := New()
	var fired atomic.Bool
	s.Start("k", 30*time.Millisecond, func() { fired.Store(true) })

	if !s.Stop("k") {
		t.Error("expected Stop to cancel the pending timer")
	}
	if s.Stop("k") {
		t.Error("second Stop must report nothing to cancel")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled timer must not fire")
	}
}

func TestStopAll_CancelsEverythingAndBlocksRestarts(t *testing.T) {
	t.Parallel()

	s := New()
	var fired atomic.Int32
	s.Start("a", 30*time.Millisecond, func() { fired.Add(1) })
	s.Start("b", 30*time.Millisecond, func() { fired.Add(1) })
	s.StopAll()

	// Starts after StopAll are ignored: teardown must be final.
	s.Start("c", 5*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("expected no timers to fire after StopAll, got %d", n)
	}
}

func TestStart_KeyReusableFromCallback(t *testing.T) {
	t.Parallel()

	s := New()
	done := make(chan struct{})
	s.Start("k", 5*time.Millisecond, func() {
		s.Start("k", 5*time.Millisecond, func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rescheduled timer did not fire")
	}
}

func TestIndependentKeys(t *testing.T) {
	t.Parallel()

	s := New()
	var a atomic.Bool
	fired := make(chan struct{})
	s.Start(TimerSilence, 10*time.Millisecond, func() { a.Store(true) })
	s.Start(TimerAutoAccept, 20*time.Millisecond, func() { close(fired) })

	s.Stop(TimerSilence)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("stopping one key must not affect another")
	}
	if a.Load() {
		t.Error("stopped key fired anyway")
	}
}
