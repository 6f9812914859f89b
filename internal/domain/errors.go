package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals invalid setup parameters (bad dimension,
	// capacity, or provider). Fatal at startup.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEncoding signals an embedding failure for a request.
	ErrEncoding = errors.New("encoding failed")
	// ErrCapacityExceeded signals an insertion beyond the index capacity.
	ErrCapacityExceeded = errors.New("index capacity exceeded")
	// ErrDimensionMismatch signals a vector of the wrong dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexNotReady signals a query before the first index build.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCorruptIndex signals unreadable or mismatched persisted state.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrTimeout signals that embedding plus search exceeded the deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)

// CapacityExceededError wraps ErrCapacityExceeded with sizing detail. The
// failed insertion leaves the index size unchanged.
type CapacityExceededError struct {
	Size int
	Max  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s: size %d, capacity %d", ErrCapacityExceeded.Error(), e.Size, e.Max)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// NewCapacityExceeded creates a capacity error for the given sizes.
func NewCapacityExceeded(size, maxElements int) error {
	return &CapacityExceededError{Size: size, Max: maxElements}
}

// DimensionMismatchError wraps ErrDimensionMismatch with both dimensions.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension error.
func NewDimensionMismatch(expected, actual int) error {
	return &DimensionMismatchError{Expected: expected, Actual: actual}
}
