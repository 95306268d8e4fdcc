// Package testutil provides common testing utilities to reduce code duplication
// across test files in the parmat matrix library.
//
// This package consolidates common patterns:
// - Memory allocator setup and leak checks
// - Seeded random matrix creation
// - Worker pool lifecycle management
// - Common matrix assertions
package testutil

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultSeed keeps random test matrices reproducible.
	defaultSeed = 1
	// defaultTolerance is used by AssertMatrixApprox.
	defaultTolerance = 1e-9
)

// TestMemoryContext provides a checked allocator that reports leaks on Release.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	cleanup   func()
}

// Release asserts that every Arrow buffer allocated through the context was freed.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a checked memory allocator for tests.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(t *testing.T) *TestMemoryContext {
	t.Helper()
	allocator := memory.NewCheckedAllocator(memory.NewGoAllocator())

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup: func() {
			allocator.AssertSize(t, 0)
		},
	}
}

// RandomMatrixOption configures RandomMatrix.
type RandomMatrixOption func(*randomMatrixConfig)

type randomMatrixConfig struct {
	seed   int64
	offset float64
	scale  float64
}

// WithSeed sets the random seed.
func WithSeed(seed int64) RandomMatrixOption {
	return func(cfg *randomMatrixConfig) {
		cfg.seed = seed
	}
}

// WithRange draws values from [lo, hi) instead of [0, 1).
func WithRange(lo, hi float64) RandomMatrixOption {
	return func(cfg *randomMatrixConfig) {
		cfg.offset = lo
		cfg.scale = hi - lo
	}
}

// RandomMatrix creates a rows×cols matrix of reproducible random values.
func RandomMatrix(tb testing.TB, rows, cols int, opts ...RandomMatrixOption) *matrix.Dense {
	tb.Helper()
	cfg := &randomMatrixConfig{seed: defaultSeed, scale: 1}
	for _, opt := range opts {
		opt(cfg)
	}

	m, err := matrix.New(rows, cols)
	require.NoError(tb, err)
	m.FillRandom(rand.New(rand.NewSource(cfg.seed))) //nolint:gosec // test data
	m.Apply(func(v float64) float64 { return cfg.offset + v*cfg.scale })
	return m
}

// MustMatrix builds a matrix from literal rows.
func MustMatrix(tb testing.TB, rows ...[]float64) *matrix.Dense {
	tb.Helper()
	m, err := matrix.NewFromRows(rows...)
	require.NoError(tb, err)
	return m
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartedPool creates and starts a worker pool that is stopped when the test ends.
// A quiet logger is installed unless opts supply another one.
func StartedPool(t *testing.T, opts ...parallel.Option) *parallel.WorkerPool {
	t.Helper()
	opts = append([]parallel.Option{parallel.WithLogger(DiscardLogger())}, opts...)
	pool := parallel.NewWorkerPool(opts...)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)
	return pool
}

// AssertMatrixEqual asserts exact equality of shape and values.
func AssertMatrixEqual(t *testing.T, expected, actual *matrix.Dense) {
	t.Helper()
	require.NotNil(t, actual)
	assert.True(t, expected.Equal(actual), "expected\n%s\ngot\n%s", expected, actual)
}

// AssertMatrixApprox asserts equal shape and values within a small tolerance.
func AssertMatrixApprox(t *testing.T, expected, actual *matrix.Dense) {
	t.Helper()
	require.NotNil(t, actual)
	assert.True(t, expected.EqualApprox(actual, defaultTolerance), "expected\n%s\ngot\n%s", expected, actual)
}
