// Package parmat provides a dense float64 matrix type whose products and
// elementwise operations run row-parallel on a fixed pool of workers.
// This package is the sole public API for the library.
//
// Sequential helpers such as Multiply and Add compute on the calling
// goroutine. An Engine owns a worker pool and splits the same operations
// into one job per result row; the caller blocks until every row is written:
//
//	engine, err := parmat.NewEngine(parmat.WithWorkers(4))
//	if err != nil { ... }
//	if err := engine.Start(ctx); err != nil { ... }
//	defer engine.Stop()
//
//	c, err := engine.Multiply(ctx, a, b)
//
// Errors wrap the sentinels exported by this package and are matched with
// errors.Is.
package parmat

import (
	"math/rand"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/io"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/monitoring"
)

// Matrix is the public matrix type.
// It wraps the internal matrix.Dense to hide implementation details.
type Matrix struct {
	m *matrix.Dense
}

func wrap(m *matrix.Dense, err error) (*Matrix, error) {
	if err != nil {
		return nil, err
	}
	return &Matrix{m: m}, nil
}

// NewMatrix creates a rows×cols matrix of zeros.
func NewMatrix(rows, cols int) (*Matrix, error) {
	return wrap(matrix.New(rows, cols))
}

// FromRows creates a matrix from equally long row slices.
func FromRows(rows ...[]float64) (*Matrix, error) {
	return wrap(matrix.NewFromRows(rows...))
}

// FromSlice creates a rows×cols matrix from row-major data.
func FromSlice(rows, cols int, data []float64) (*Matrix, error) {
	return wrap(matrix.NewFromSlice(rows, cols, data))
}

// Identity creates an n×n identity matrix.
func Identity(n int) (*Matrix, error) {
	return wrap(matrix.Identity(n))
}

// RowVector creates a 1×n matrix.
func RowVector(data ...float64) (*Matrix, error) {
	return wrap(matrix.NewRowVector(data...))
}

// ColumnVector creates an n×1 matrix.
func ColumnVector(data ...float64) (*Matrix, error) {
	return wrap(matrix.NewColumnVector(data...))
}

// Random creates a rows×cols matrix of values in [0,1) drawn from a source
// seeded with seed, so equal seeds give equal matrices.
func Random(rows, cols int, seed int64) (*Matrix, error) {
	m, err := matrix.New(rows, cols)
	if err != nil {
		return nil, err
	}
	return &Matrix{m: m.FillRandom(rand.New(rand.NewSource(seed)))}, nil //nolint:gosec // reproducible test data
}

// ReadMatrix loads a matrix from a .csv, .json, .jsonl or .parquet file.
func ReadMatrix(path string) (*Matrix, error) {
	return wrap(io.ReadFile(path, nil))
}

// WriteMatrix stores m in the format implied by the extension of path.
func WriteMatrix(path string, m *Matrix) error {
	if err := operands("WriteMatrix", m); err != nil {
		return err
	}
	return io.WriteFile(path, m.m)
}

// Rows returns the number of rows.
func (x *Matrix) Rows() int { return x.m.Rows() }

// Cols returns the number of columns.
func (x *Matrix) Cols() int { return x.m.Cols() }

// At returns the value at (row, col).
func (x *Matrix) At(row, col int) (float64, error) { return x.m.At(row, col) }

// Set stores v at (row, col).
func (x *Matrix) Set(row, col int, v float64) error { return x.m.Set(row, col, v) }

// Row returns a copy of a row.
func (x *Matrix) Row(row int) ([]float64, error) { return x.m.Row(row) }

// Column returns a copy of a column.
func (x *Matrix) Column(col int) ([]float64, error) { return x.m.Col(col) }

// Clone returns a deep copy.
func (x *Matrix) Clone() *Matrix { return &Matrix{m: x.m.Clone()} }

// Equal reports whether both matrices have the same shape and cells.
func (x *Matrix) Equal(o *Matrix) bool {
	if x == nil || o == nil {
		return x == o
	}
	return x.m.Equal(o.m)
}

// EqualApprox is Equal with an absolute tolerance per cell.
func (x *Matrix) EqualApprox(o *Matrix, tol float64) bool {
	if x == nil || o == nil {
		return x == o
	}
	return x.m.EqualApprox(o.m, tol)
}

// Fingerprint returns a hash of the shape and cell bits, cheap to compare
// across large results.
func (x *Matrix) Fingerprint() uint64 { return x.m.Fingerprint() }

// String renders one bar-delimited line per row.
func (x *Matrix) String() string { return x.m.String() }

// Transpose returns a new transposed matrix.
func (x *Matrix) Transpose() *Matrix { return &Matrix{m: matrix.Transpose(x.m)} }

// Sequential helpers. Each call is recorded by the global metrics collector
// when one is installed.

// Multiply returns a·b computed on the calling goroutine.
func Multiply(a, b *Matrix) (*Matrix, error) {
	return sequential("Multiply", func() (*matrix.Dense, error) {
		if err := operands("Multiply", a, b); err != nil {
			return nil, err
		}
		return matrix.Mul(a.m, b.m)
	})
}

// Add returns a+b.
func Add(a, b *Matrix) (*Matrix, error) {
	return sequential("Add", func() (*matrix.Dense, error) {
		if err := operands("Add", a, b); err != nil {
			return nil, err
		}
		return matrix.Add(a.m, b.m)
	})
}

// Subtract returns a-b.
func Subtract(a, b *Matrix) (*Matrix, error) {
	return sequential("Subtract", func() (*matrix.Dense, error) {
		if err := operands("Subtract", a, b); err != nil {
			return nil, err
		}
		return matrix.Sub(a.m, b.m)
	})
}

// Hadamard returns the cellwise product of a and b.
func Hadamard(a, b *Matrix) (*Matrix, error) {
	return sequential("Hadamard", func() (*matrix.Dense, error) {
		if err := operands("Hadamard", a, b); err != nil {
			return nil, err
		}
		return matrix.Hadamard(a.m, b.m)
	})
}

// Scale returns s·a.
func Scale(a *Matrix, s float64) (*Matrix, error) {
	return sequential("Scale", func() (*matrix.Dense, error) {
		if err := operands("Scale", a); err != nil {
			return nil, err
		}
		return matrix.Scale(a.m, s), nil
	})
}

// Inverse returns the inverse of a square matrix, or ErrSingular.
func Inverse(a *Matrix) (*Matrix, error) {
	return sequential("Inverse", func() (*matrix.Dense, error) {
		if err := operands("Inverse", a); err != nil {
			return nil, err
		}
		return matrix.Inverse(a.m)
	})
}

// Determinant returns det(a) of a square matrix.
func Determinant(a *Matrix) (float64, error) {
	var det float64
	err := monitoring.RecordGlobalOperation("Determinant", func() error {
		if err := operands("Determinant", a); err != nil {
			return err
		}
		var err error
		det, err = matrix.Determinant(a.m)
		return err
	})
	return det, err
}

// LUFactors holds a factorisation P·A = L·U.
type LUFactors struct {
	P, L, U *Matrix
}

// LU factorises a square matrix.
func LU(a *Matrix) (*LUFactors, error) {
	var f *LUFactors
	err := monitoring.RecordGlobalOperation("LU", func() error {
		if err := operands("LU", a); err != nil {
			return err
		}
		lu, err := matrix.LU(a.m)
		if err != nil {
			return err
		}
		f = &LUFactors{P: &Matrix{m: lu.P}, L: &Matrix{m: lu.L}, U: &Matrix{m: lu.U}}
		return nil
	})
	return f, err
}

func sequential(op string, fn func() (*matrix.Dense, error)) (*Matrix, error) {
	var out *matrix.Dense
	err := monitoring.RecordGlobalOperation(op, func() error {
		var err error
		out, err = fn()
		return err
	})
	return wrap(out, err)
}

func operands(op string, ms ...*Matrix) error {
	for _, m := range ms {
		if m == nil || m.m == nil {
			return errors.NewInvalidInputError(op, "nil operand")
		}
	}
	return nil
}

// EnableMetrics installs a global collector that records every sequential
// helper call.
func EnableMetrics() {
	monitoring.EnableGlobalMonitoring()
}

// DisableMetrics stops recording sequential helper calls.
func DisableMetrics() {
	monitoring.DisableGlobalMonitoring()
}

// MetricsSummary aggregates recorded operations.
type MetricsSummary = monitoring.MetricsSummary

// GlobalMetrics summarises the calls recorded since EnableMetrics.
func GlobalMetrics() MetricsSummary {
	return monitoring.GetGlobalSummary()
}
