package hfinference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "inference status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("inference %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("inference %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func classifyInferenceError(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.Classification{Retryable: true, RecordFailure: true}
		}
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	// Transport-level request failures wrap net errors as plain strings too.
	if strings.Contains(err.Error(), "connection refused") {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	return resilience.Classification{Retryable: false, RecordFailure: true}
}

// wrapGenerationError maps any exhausted generation failure, timeout, open
// breaker or terminal status alike, onto the generation-unavailable kind the
// composer degrades on.
func wrapGenerationError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrGenerationUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrGenerationUnavailable, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
