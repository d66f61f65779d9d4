package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: 5 * time.Second, HalfOpenMaxReq: 1})
	now := time.Date(2026, 5, 3, 18, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second probe to be rejected, got %v", err)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open probe, got %s", state)
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 1})
	errPublish := errors.New("publish failed")

	if err := b.Execute(func() error { return errPublish }); !errors.Is(err, errPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected open breaker to short-circuit, err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_DisabledIsNil(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: false})
	if b != nil {
		t.Fatalf("expected nil breaker when disabled")
	}
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("nil breaker should allow calls, got %v", err)
	}
	if b.State() != CircuitStateClosed {
		t.Fatalf("nil breaker should report closed")
	}
}

func TestCircuitBreaker_ReportsTransitions(t *testing.T) {
	t.Parallel()

	var seen []string
	var b *CircuitBreaker
	b = NewCircuitBreaker(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		HalfOpenMaxReq:   1,
		OnStateChange: func(from, to CircuitState) {
			// Lock must be free here.
			_ = b.State()
			seen = append(seen, string(from)+">"+string(to))
		},
	})
	now := time.Date(2026, 5, 3, 18, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe: %v", err)
	}
	b.RecordSuccess()
	b.RecordSuccess()

	want := []string{"closed>open", "open>half_open", "half_open>closed"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestCircuitBreakerConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := CircuitBreakerConfig{Enabled: true, FailureThreshold: -1}.withDefaults()
	d := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold != d.FailureThreshold || cfg.OpenTimeout != d.OpenTimeout || cfg.HalfOpenMaxReq != d.HalfOpenMaxReq {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
