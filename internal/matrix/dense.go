// Package matrix provides the dense storage type and the sequential numeric
// kernels used by the row-parallel scheduler.
//
// Dense is a row-major float64 container with no internal locking: writes to
// disjoint rows never interfere, which is the only guarantee the scheduler
// relies on when several row jobs share one destination. Operands handed to
// a dispatch must not be mutated by anyone else for its duration.
//
// Key components:
//   - Dense construction, accessors and row/column operations
//   - Sequential kernels (Mul, Add, Sub, Hadamard, Scale, Transpose)
//   - Row kernels (MulRow, AddRow, ...) that compute one destination row
//   - LU decomposition, inverse and determinant
//   - Arrow record conversion for columnar I/O
package matrix

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/validation"
)

// Dense is a row-major matrix of float64 values.
type Dense struct {
	rows, cols int
	data       []float64 // len == rows*cols
}

// New creates a rows×cols matrix initialized to zeros.
func New(rows, cols int) (*Dense, error) {
	if err := validation.ValidateShape(rows, cols, "New"); err != nil {
		return nil, err
	}
	return &Dense{rows: rows, cols: cols, data: make([]float64, rows*cols)}, nil
}

// NewFromRows creates a matrix from row slices. Every row must have the
// length of the first one.
func NewFromRows(rows ...[]float64) (*Dense, error) {
	if len(rows) == 0 {
		return nil, errors.NewInvalidShapeError("NewFromRows", "at least one row is required")
	}
	cols := len(rows[0])
	m, err := New(len(rows), cols)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.NewInvalidShapeError("NewFromRows",
				fmt.Sprintf("row %d has %d values, expected %d", i, len(row), cols))
		}
		copy(m.data[i*cols:], row)
	}
	return m, nil
}

// NewFromSlice creates a rows×cols matrix from row-major data. The slice is copied.
func NewFromSlice(rows, cols int, data []float64) (*Dense, error) {
	m, err := New(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, errors.NewInvalidShapeError("NewFromSlice",
			fmt.Sprintf("%d values cannot fill %dx%d", len(data), rows, cols))
	}
	copy(m.data, data)
	return m, nil
}

// NewRowVector creates a 1×n matrix.
func NewRowVector(data ...float64) (*Dense, error) {
	return NewFromSlice(1, len(data), data)
}

// NewColumnVector creates an n×1 matrix.
func NewColumnVector(data ...float64) (*Dense, error) {
	return NewFromSlice(len(data), 1, data)
}

// Identity creates an n×n identity matrix.
func Identity(n int) (*Dense, error) {
	m, err := New(n, n)
	if err != nil {
		return nil, err
	}
	for i := range n {
		m.data[i*n+i] = 1
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense) Cols() int { return m.cols }

// Len returns the number of cells.
func (m *Dense) Len() int { return len(m.data) }

// IsSquare reports whether rows == cols.
func (m *Dense) IsSquare() bool { return m.rows == m.cols }

// Data returns the row-major backing slice. Mutating it mutates the matrix.
func (m *Dense) Data() []float64 { return m.data }

func (m *Dense) indexOf(op string, row, col int) (int, error) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return 0, errors.NewIndexError(op, row, col)
	}
	return row*m.cols + col, nil
}

// At returns the value at (row, col).
func (m *Dense) At(row, col int) (float64, error) {
	idx, err := m.indexOf("At", row, col)
	if err != nil {
		return 0, err
	}
	return m.data[idx], nil
}

// Set assigns v at (row, col).
func (m *Dense) Set(row, col int, v float64) error {
	idx, err := m.indexOf("Set", row, col)
	if err != nil {
		return err
	}
	m.data[idx] = v
	return nil
}

// RawRow returns the backing slice of one row without copying.
// Row kernels write through it; callers must own the row exclusively.
func (m *Dense) RawRow(row int) ([]float64, error) {
	if err := validation.ValidateIndex(row, m.rows, "RawRow"); err != nil {
		return nil, err
	}
	return m.data[row*m.cols : (row+1)*m.cols : (row+1)*m.cols], nil
}

// Row returns a copy of one row.
func (m *Dense) Row(row int) ([]float64, error) {
	raw, err := m.RawRow(row)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	copy(out, raw)
	return out, nil
}

// Col returns a copy of one column.
func (m *Dense) Col(col int) ([]float64, error) {
	if err := validation.ValidateIndex(col, m.cols, "Col"); err != nil {
		return nil, err
	}
	out := make([]float64, m.rows)
	for i := range m.rows {
		out[i] = m.data[i*m.cols+col]
	}
	return out, nil
}

// SetRow overwrites one row.
func (m *Dense) SetRow(row int, values []float64) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(row, m.rows, "SetRow"),
		validation.NewLengthValidator(m.cols, len(values), "SetRow", "row data"),
	).Validate(); err != nil {
		return err
	}
	copy(m.data[row*m.cols:], values)
	return nil
}

// SetCol overwrites one column.
func (m *Dense) SetCol(col int, values []float64) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(col, m.cols, "SetCol"),
		validation.NewLengthValidator(m.rows, len(values), "SetCol", "column data"),
	).Validate(); err != nil {
		return err
	}
	for i, v := range values {
		m.data[i*m.cols+col] = v
	}
	return nil
}

// SwapRows exchanges rows i and j.
func (m *Dense) SwapRows(i, j int) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(i, m.rows, "SwapRows"),
		validation.NewIndexValidator(j, m.rows, "SwapRows"),
	).Validate(); err != nil {
		return err
	}
	if i == j {
		return nil
	}
	ri := m.data[i*m.cols : (i+1)*m.cols]
	rj := m.data[j*m.cols : (j+1)*m.cols]
	for k := range ri {
		ri[k], rj[k] = rj[k], ri[k]
	}
	return nil
}

// SwapCols exchanges columns i and j.
func (m *Dense) SwapCols(i, j int) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(i, m.cols, "SwapCols"),
		validation.NewIndexValidator(j, m.cols, "SwapCols"),
	).Validate(); err != nil {
		return err
	}
	for r := range m.rows {
		base := r * m.cols
		m.data[base+i], m.data[base+j] = m.data[base+j], m.data[base+i]
	}
	return nil
}

// ScaleRow multiplies every value of a row by k.
func (m *Dense) ScaleRow(row int, k float64) error {
	raw, err := m.RawRow(row)
	if err != nil {
		return err
	}
	for i := range raw {
		raw[i] *= k
	}
	return nil
}

// ScaleCol multiplies every value of a column by k.
func (m *Dense) ScaleCol(col int, k float64) error {
	if err := validation.ValidateIndex(col, m.cols, "ScaleCol"); err != nil {
		return err
	}
	for r := range m.rows {
		m.data[r*m.cols+col] *= k
	}
	return nil
}

// AddScaledRow performs row[dst] += k * row[src].
func (m *Dense) AddScaledRow(src, dst int, k float64) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(src, m.rows, "AddScaledRow"),
		validation.NewIndexValidator(dst, m.rows, "AddScaledRow"),
	).Validate(); err != nil {
		return err
	}
	s := m.data[src*m.cols : (src+1)*m.cols]
	d := m.data[dst*m.cols : (dst+1)*m.cols]
	for i := range d {
		d[i] += k * s[i]
	}
	return nil
}

// AddScaledCol performs col[dst] += k * col[src].
func (m *Dense) AddScaledCol(src, dst int, k float64) error {
	if err := validation.NewCompoundValidator(
		validation.NewIndexValidator(src, m.cols, "AddScaledCol"),
		validation.NewIndexValidator(dst, m.cols, "AddScaledCol"),
	).Validate(); err != nil {
		return err
	}
	for r := range m.rows {
		base := r * m.cols
		m.data[base+dst] += k * m.data[base+src]
	}
	return nil
}

// Apply replaces every value v with fn(v), in place.
func (m *Dense) Apply(fn func(float64) float64) {
	for i, v := range m.data {
		m.data[i] = fn(v)
	}
}

// FillRandom fills the matrix with values in [0, 1) drawn from rng.
func (m *Dense) FillRandom(rng *rand.Rand) *Dense {
	for i := range m.data {
		m.data[i] = rng.Float64()
	}
	return m
}

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Dense{rows: m.rows, cols: m.cols, data: data}
}

// Equal reports whether o has the same shape and bit-for-bit equal values
// (NaN never equals NaN).
func (m *Dense) Equal(o *Dense) bool {
	if o == nil || m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i, v := range m.data {
		if v != o.data[i] {
			return false
		}
	}
	return true
}

// EqualApprox reports whether o has the same shape and every value is within tol.
func (m *Dense) EqualApprox(o *Dense, tol float64) bool {
	if o == nil || m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i, v := range m.data {
		if math.Abs(v-o.data[i]) > tol {
			return false
		}
	}
	return true
}

// Fingerprint hashes the shape and the IEEE-754 bits of every value.
// Equal matrices always share a fingerprint.
func (m *Dense) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(m.rows))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(m.cols))
	_, _ = h.Write(buf[:])
	for _, v := range m.data {
		bits := math.Float64bits(v)
		if v == 0 {
			bits = 0 // -0 == +0
		}
		binary.LittleEndian.PutUint64(buf[:], bits)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// String renders one "|a b c|" line per row.
func (m *Dense) String() string {
	var sb strings.Builder
	for r := range m.rows {
		sb.WriteByte('|')
		for c := range m.cols {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(m.data[r*m.cols+c], 'g', -1, 64))
		}
		sb.WriteByte('|')
		if r < m.rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
