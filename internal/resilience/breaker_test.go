package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func failing() error { return errBackend }
func healthy() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := b.Do(failing); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if err := b.Do(healthy); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker must reject, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 2, ResetTimeout: time.Hour})

	_ = b.Do(failing)
	_ = b.Do(healthy)
	_ = b.Do(failing)

	if b.State() != StateClosed {
		t.Errorf("interleaved success must keep the breaker closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenClosesAfterProbes(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenProbes: 2})

	_ = b.Do(failing)
	time.Sleep(20 * time.Millisecond)

	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %s", b.State())
	}
	_ = b.Do(healthy)
	_ = b.Do(healthy)
	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})

	_ = b.Do(failing)
	time.Sleep(20 * time.Millisecond)
	_ = b.Do(failing)

	if b.State() != StateOpen {
		t.Errorf("failed probe must re-open, got %s", b.State())
	}
}

func TestBreaker_UserAbortIsNotAFailure(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 1, ResetTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		if err := b.Do(func() error { return context.Canceled }); !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("aborts must not trip the breaker, got %s", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "test", MaxFailures: 1, ResetTimeout: time.Hour})
	_ = b.Do(failing)
	b.Reset()

	if b.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}
	if err := b.Do(healthy); err != nil {
		t.Errorf("reset breaker must forward calls, got %v", err)
	}
}
