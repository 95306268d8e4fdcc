package matrix

import (
	"github.com/paveg/parmat/internal/validation"
)

// Mul returns a·b computed sequentially.
func Mul(a, b *Dense) (*Dense, error) {
	if err := validation.ValidateProduct(a, b, "Mul"); err != nil {
		return nil, err
	}
	out := &Dense{rows: a.rows, cols: b.cols, data: make([]float64, a.rows*b.cols)}
	for r := range a.rows {
		mulRow(out, a, b, r)
	}
	return out, nil
}

// MulTransposed returns a·b by walking a transposed copy of b, so both
// operands are read along contiguous rows. Results equal Mul exactly since
// each dot product sums in the same order.
func MulTransposed(a, b *Dense) (*Dense, error) {
	if err := validation.ValidateProduct(a, b, "MulTransposed"); err != nil {
		return nil, err
	}
	bt := Transpose(b)
	out := &Dense{rows: a.rows, cols: b.cols, data: make([]float64, a.rows*b.cols)}
	n := a.cols
	for r := range a.rows {
		ar := a.data[r*n : (r+1)*n]
		for c := range b.cols {
			bc := bt.data[c*n : (c+1)*n]
			var sum float64
			for k, v := range ar {
				sum += v * bc[k]
			}
			out.data[r*out.cols+c] = sum
		}
	}
	return out, nil
}

// Add returns a+b.
func Add(a, b *Dense) (*Dense, error) {
	return elementwise("Add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns a-b.
func Sub(a, b *Dense) (*Dense, error) {
	return elementwise("Sub", a, b, func(x, y float64) float64 { return x - y })
}

// Hadamard returns the element-wise product of a and b.
func Hadamard(a, b *Dense) (*Dense, error) {
	return elementwise("Hadamard", a, b, func(x, y float64) float64 { return x * y })
}

// Scale returns s·a.
func Scale(a *Dense, s float64) *Dense {
	out := a.Clone()
	for i := range out.data {
		out.data[i] *= s
	}
	return out
}

// Transpose returns aᵀ.
func Transpose(a *Dense) *Dense {
	out := &Dense{rows: a.cols, cols: a.rows, data: make([]float64, len(a.data))}
	for r := range a.rows {
		for c := range a.cols {
			out.data[c*out.cols+r] = a.data[r*a.cols+c]
		}
	}
	return out
}

func elementwise(op string, a, b *Dense, fn func(x, y float64) float64) (*Dense, error) {
	if err := validation.ValidateSameShape(a, b, op); err != nil {
		return nil, err
	}
	out := &Dense{rows: a.rows, cols: a.cols, data: make([]float64, len(a.data))}
	for i := range out.data {
		out.data[i] = fn(a.data[i], b.data[i])
	}
	return out, nil
}
