package semdex

import "github.com/semdex-io/semdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration     = domain.ErrConfiguration
	ErrEncoding          = domain.ErrEncoding
	ErrCapacityExceeded  = domain.ErrCapacityExceeded
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrIndexNotReady     = domain.ErrIndexNotReady
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrCorruptIndex      = domain.ErrCorruptIndex
	ErrTimeout           = domain.ErrTimeout
)
