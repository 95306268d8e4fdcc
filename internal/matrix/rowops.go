package matrix

import (
	"math"
	"strconv"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/validation"
)

// Row kernels compute exactly one destination row. They are the per-job
// strategy of the scheduler: each reads the operands and writes only
// dst's row r, so kernels for distinct rows may run concurrently.

// MulRow writes row r of a·b into dst.
func MulRow(dst, a, b *Dense, r int) error {
	if err := checkRow("MulRow", dst, r); err != nil {
		return err
	}
	if err := validation.NewCompoundValidator(
		validation.NewProductValidator(a, b, "MulRow"),
		validation.NewSameShapeValidator(dst, shape{a.rows, b.cols}, "MulRow"),
	).Validate(); err != nil {
		return err
	}
	mulRow(dst, a, b, r)
	return nil
}

func mulRow(dst, a, b *Dense, r int) {
	ar := a.data[r*a.cols : (r+1)*a.cols]
	out := dst.data[r*dst.cols : (r+1)*dst.cols]
	for c := range b.cols {
		var sum float64
		for k, v := range ar {
			sum += v * b.data[k*b.cols+c]
		}
		out[c] = sum
	}
}

// AddRow writes row r of a+b into dst.
func AddRow(dst, a, b *Dense, r int) error {
	return elementwiseRow("AddRow", dst, a, b, r, func(x, y float64) float64 { return x + y })
}

// SubRow writes row r of a-b into dst.
func SubRow(dst, a, b *Dense, r int) error {
	return elementwiseRow("SubRow", dst, a, b, r, func(x, y float64) float64 { return x - y })
}

// HadamardRow writes row r of the element-wise product into dst.
func HadamardRow(dst, a, b *Dense, r int) error {
	return elementwiseRow("HadamardRow", dst, a, b, r, func(x, y float64) float64 { return x * y })
}

// ScaleRow writes row r of s·a into dst.
func ScaleRow(dst, a *Dense, s float64, r int) error {
	if err := checkRow("ScaleRow", dst, r); err != nil {
		return err
	}
	if err := validation.ValidateSameShape(dst, a, "ScaleRow"); err != nil {
		return err
	}
	ar := a.data[r*a.cols : (r+1)*a.cols]
	out := dst.data[r*dst.cols : (r+1)*dst.cols]
	for i, v := range ar {
		out[i] = s * v
	}
	return nil
}

// CheckRowFinite returns ErrNaNInf if row r of m holds a NaN or ±Inf.
func CheckRowFinite(m *Dense, r int) error {
	raw, err := m.RawRow(r)
	if err != nil {
		return err
	}
	for c, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &errors.MatrixError{
				Op:      "CheckRowFinite",
				Row:     r,
				Message: "non-finite value in column " + strconv.Itoa(c),
				Cause:   errors.ErrNaNInf,
			}
		}
	}
	return nil
}

func elementwiseRow(op string, dst, a, b *Dense, r int, fn func(x, y float64) float64) error {
	if err := checkRow(op, dst, r); err != nil {
		return err
	}
	if err := validation.NewCompoundValidator(
		validation.NewSameShapeValidator(a, b, op),
		validation.NewSameShapeValidator(dst, a, op),
	).Validate(); err != nil {
		return err
	}
	ar := a.data[r*a.cols : (r+1)*a.cols]
	br := b.data[r*b.cols : (r+1)*b.cols]
	out := dst.data[r*dst.cols : (r+1)*dst.cols]
	for i := range out {
		out[i] = fn(ar[i], br[i])
	}
	return nil
}

func checkRow(op string, dst *Dense, r int) error {
	if dst == nil {
		return errors.NewInvalidInputError(op, "nil destination")
	}
	return validation.ValidateIndex(r, dst.rows, op)
}

// shape lets validators compare against a shape that has no matrix yet.
type shape struct{ rows, cols int }

func (s shape) Rows() int { return s.rows }
func (s shape) Cols() int { return s.cols }
