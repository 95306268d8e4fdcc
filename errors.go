package parmat

import "github.com/paveg/parmat/internal/errors"

// Sentinel errors. Every error returned by this package wraps one of them.
//
//nolint:gochecknoglobals // re-exported sentinels
var (
	ErrInvalidShape       = errors.ErrInvalidShape
	ErrDimensionMismatch  = errors.ErrDimensionMismatch
	ErrIndexOutOfRange    = errors.ErrIndexOutOfRange
	ErrNonSquare          = errors.ErrNonSquare
	ErrSingular           = errors.ErrSingular
	ErrNaNInf             = errors.ErrNaNInf
	ErrInvalidInput       = errors.ErrInvalidInput
	ErrInterrupted        = errors.ErrInterrupted
	ErrPoolStopped        = errors.ErrPoolStopped
	ErrPoolNotStarted     = errors.ErrPoolNotStarted
	ErrPoolAlreadyStarted = errors.ErrPoolAlreadyStarted
	ErrJobFailed          = errors.ErrJobFailed
	ErrAcceleratorStopped = errors.ErrAcceleratorStopped
)

// MatrixError is the structured error returned by matrix operations.
type MatrixError = errors.MatrixError

// JobError reports a fault raised inside a row job.
type JobError = errors.JobError
