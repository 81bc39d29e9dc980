package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/agrisense/agrisense-engine/internal/core/ports"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/resilience"
)

// A bus without a live connection fails every publish; with a tight breaker
// the second publish must be rejected by the breaker, proving publishes run
// under the configured executor.
func TestPublishIngestedRunsUnderExecutor(t *testing.T) {
	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:         1,
		InitialBackoff:      time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.01,
		BreakerOpenTimeout:  time.Minute,
	})
	bus := &Bus{subject: "agrisense.ingest", executor: executor}

	err := bus.PublishIngested(context.Background(), ports.IngestEvent{Kind: "document"})
	if !errors.Is(err, nats.ErrInvalidConnection) {
		t.Fatalf("first publish error = %v, want ErrInvalidConnection", err)
	}

	err = bus.PublishIngested(context.Background(), ports.IngestEvent{Kind: "document"})
	if !resilience.IsCircuitOpen(err) {
		t.Fatalf("second publish error = %v, want open breaker", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.Classification
	}{
		{"nil", nil, resilience.Classification{}},
		{"context cancelled", context.Canceled, resilience.Classification{Retryable: false, RecordFailure: false}},
		{"deadline exceeded", context.DeadlineExceeded, resilience.Classification{Retryable: false, RecordFailure: false}},
		{"connection closed", nats.ErrConnectionClosed, resilience.Classification{Retryable: false, RecordFailure: true}},
		{"connection draining", nats.ErrConnectionDraining, resilience.Classification{Retryable: false, RecordFailure: true}},
		{"transient", errors.New("nats: timeout"), resilience.Classification{Retryable: true, RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyNATSError(tt.err); got != tt.want {
				t.Fatalf("classifyNATSError(%v) = %+v, want %+v", tt.err, got, tt.want)
			}
		})
	}
}
