// Package accel offloads whole matrix products to a single dedicated
// worker with its own request queue, standing in for a device accelerator.
//
// The scheduler routes a product here instead of fanning it out row by row
// once the result is large enough. The Backend that does the arithmetic is
// pluggable; the default CPUBackend uses a cache-friendly sequential kernel.
package accel

import (
	"context"

	"github.com/paveg/parmat/internal/matrix"
)

// DefaultThreshold is the result size in cells from which products are
// routed to the accelerator.
const DefaultThreshold = 1 << 16

// DefaultQueueSize is the number of requests that may wait for the accelerator.
const DefaultQueueSize = 16

// Accelerator computes whole matrix products.
type Accelerator interface {
	Multiply(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error)
}

// Backend performs the arithmetic for a Service.
type Backend interface {
	Name() string
	Multiply(a, b *matrix.Dense) (*matrix.Dense, error)
}

// CPUBackend multiplies on the calling goroutine using a transposed copy
// of the right operand.
type CPUBackend struct{}

func (CPUBackend) Name() string { return "cpu" }

func (CPUBackend) Multiply(a, b *matrix.Dense) (*matrix.Dense, error) {
	return matrix.MulTransposed(a, b)
}
