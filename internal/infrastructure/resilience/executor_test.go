package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
		BreakerEnabled: false,
	}
}

func retryAll(error) Classification {
	return Classification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastConfig())
	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	exec := NewExecutor(fastConfig())
	attempts := 0
	wantErr := errors.New("still failing")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return wantErr
	}, retryAll)
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want max attempts", attempts)
	}
}

func TestExecuteNonRetryableStopsImmediately(t *testing.T) {
	exec := NewExecutor(fastConfig())
	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errors.New("fatal")
	}, func(error) Classification { return Classification{Retryable: false} })
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	exec := NewExecutor(fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		return nil
	}, retryAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d, want 0 after cancellation", attempts)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor(cfg)

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "op", fail, retryAll)
	}

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return nil
	}, retryAll)
	if !IsCircuitOpen(err) {
		t.Fatalf("error = %v, want open circuit", err)
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d, open breaker must not run the operation", attempts)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	exec := NewExecutor(cfg)

	ignore := func(error) Classification { return Classification{Retryable: false, RecordFailure: false} }
	fail := func(context.Context) error { return errors.New("caller mistake") }
	for i := 0; i < 5; i++ {
		_ = exec.Execute(context.Background(), "op", fail, ignore)
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error { return nil }, ignore)
	if err != nil {
		t.Fatalf("Execute() error = %v, unrecorded failures must not trip the breaker", err)
	}
}

func TestExecuteSeparateBreakersPerOperation(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	exec := NewExecutor(cfg)

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "op-a", fail, retryAll)
	}

	err := exec.Execute(context.Background(), "op-b", func(context.Context) error { return nil }, retryAll)
	if err != nil {
		t.Fatalf("Execute() error = %v, op-b breaker must be independent", err)
	}
}
