// Package errors provides standardized error types for matrix operations.
// This package defines MatrixError for consistent error handling across
// all public APIs, JobError for faults raised inside row jobs, and the
// sentinel set every package matches against with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels shared by every package. Returned errors wrap one of these so
// callers can match with errors.Is regardless of the operation context.
var (
	ErrInvalidShape       = errors.New("matrix: invalid shape")
	ErrDimensionMismatch  = errors.New("matrix: dimension mismatch")
	ErrIndexOutOfRange    = errors.New("matrix: index out of range")
	ErrNonSquare          = errors.New("matrix: matrix is not square")
	ErrSingular           = errors.New("matrix: singular matrix")
	ErrNaNInf             = errors.New("matrix: NaN or Inf encountered")
	ErrInvalidInput       = errors.New("matrix: invalid input")
	ErrInterrupted        = errors.New("parallel: interrupted while blocked")
	ErrQueueClosed        = errors.New("parallel: work queue closed")
	ErrPoolStopped        = errors.New("parallel: worker pool stopped")
	ErrPoolNotStarted     = errors.New("parallel: worker pool not started")
	ErrPoolAlreadyStarted = errors.New("parallel: worker pool already started")
	ErrJobFailed          = errors.New("parallel: job failed")
	ErrAcceleratorStopped = errors.New("accel: accelerator stopped")
)

// NoRow marks a MatrixError that is not tied to a particular row.
const NoRow = -1

// MatrixError represents standardized errors across all matrix operations
type MatrixError struct {
	Op      string // Operation name (e.g., "Multiply", "Add", "Enqueue")
	Row     int    // Row index if applicable, NoRow otherwise
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *MatrixError) Error() string {
	if e.Row != NoRow {
		return fmt.Sprintf("%s operation failed on row %d: %s", e.Op, e.Row, e.Message)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *MatrixError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is()
func (e *MatrixError) Is(target error) bool {
	if me, ok := target.(*MatrixError); ok {
		return e.Op == me.Op && e.Row == me.Row && e.Message == me.Message
	}
	return false
}

// JobError reports a fault raised while a row job was computing.
// Kind is the job kind's name so this package stays free of scheduler types.
type JobError struct {
	Kind  string
	Row   int
	Cause error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s job for row %d: %v", e.Kind, e.Row, e.Cause)
}

func (e *JobError) Unwrap() []error {
	return []error{ErrJobFailed, e.Cause}
}

// Common error constructors for consistent error creation

// NewInvalidShapeError creates an error for non-positive or ragged shapes
func NewInvalidShapeError(op, message string) *MatrixError {
	return &MatrixError{Op: op, Row: NoRow, Message: message, Cause: ErrInvalidShape}
}

// NewDimensionMismatchError creates an error for incompatible operand shapes
func NewDimensionMismatchError(op, message string) *MatrixError {
	return &MatrixError{Op: op, Row: NoRow, Message: message, Cause: ErrDimensionMismatch}
}

// NewIndexError creates an error for out-of-bounds row or column access
func NewIndexError(op string, row, col int) *MatrixError {
	return &MatrixError{
		Op:      op,
		Row:     row,
		Message: fmt.Sprintf("index (%d,%d) out of bounds", row, col),
		Cause:   ErrIndexOutOfRange,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *MatrixError {
	return &MatrixError{Op: op, Row: NoRow, Message: message, Cause: ErrInvalidInput}
}

// NewInterruptedError creates the cancellation signal returned when a blocked
// enqueue, dequeue or barrier wait is abandoned. cause is usually ctx.Err().
func NewInterruptedError(op string, cause error) *MatrixError {
	return &MatrixError{
		Op:      op,
		Row:     NoRow,
		Message: "interrupted while blocked",
		Cause:   errors.Join(ErrInterrupted, cause),
	}
}

// NewPoolStoppedError creates an error for work refused or abandoned by a stopped pool
func NewPoolStoppedError(op string) *MatrixError {
	return &MatrixError{Op: op, Row: NoRow, Message: "worker pool stopped", Cause: ErrPoolStopped}
}

// NewJobFailedError wraps the first job fault of a dispatch so the caller can
// tell the destination holds a partial result.
func NewJobFailedError(op string, cause error) *MatrixError {
	row := NoRow
	var je *JobError
	if errors.As(cause, &je) {
		row = je.Row
	}
	return &MatrixError{Op: op, Row: row, Message: "partial result, row job failed", Cause: cause}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *MatrixError {
	return &MatrixError{
		Op:      op,
		Row:     NoRow,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// Is reports whether any error in err's tree matches target.
// It forwards to the standard library so callers need only this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
