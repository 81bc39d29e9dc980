package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery rejects empty or oversized input before the pipeline.
	ErrInvalidQuery = errors.New("invalid query")

	// Structured-query failures. Caught at the fusion boundary and folded
	// into a zero-completeness result, never surfaced raw.
	ErrInsufficientData = errors.New("insufficient data")
	ErrJoinKeyMismatch  = errors.New("join key mismatch")
	ErrAmbiguousJoin    = errors.New("ambiguous join")
	ErrDatasetNotFound  = errors.New("dataset not found")

	// Hard per-request failures.
	ErrIndexUnavailable = errors.New("document index unavailable")
	ErrStoreUnavailable = errors.New("dataset store unavailable")

	// ErrGenerationUnavailable marks generation-capability timeouts and
	// service errors after retries are exhausted.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrTemporary marks transient infrastructure failures worth retrying
	// upstream.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
