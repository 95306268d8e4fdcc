package matrix

import (
	"math"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/validation"
)

// LUResult holds a factorisation P·A = L·U.
// Swaps counts the row exchanges recorded in P.
type LUResult struct {
	P, L, U *Dense
	Swaps   int
}

// LU factorises a square matrix, choosing the first non-zero entry at or
// below the diagonal as pivot. A column without a pivot is skipped, which
// leaves a zero on U's diagonal for singular input.
func LU(a *Dense) (*LUResult, error) {
	if err := validation.ValidateSquare(a, "LU"); err != nil {
		return nil, err
	}
	n := a.rows
	u := a.Clone()
	l, _ := Identity(n)
	p, _ := Identity(n)
	swaps := 0

	for k := range n {
		pivot := firstNonZero(u, k, k)
		if pivot < 0 {
			continue
		}
		if pivot != k {
			_ = u.SwapRows(k, pivot)
			_ = p.SwapRows(k, pivot)
			for c := 0; c < k; c++ {
				l.data[k*n+c], l.data[pivot*n+c] = l.data[pivot*n+c], l.data[k*n+c]
			}
			swaps++
		}
		for r := k + 1; r < n; r++ {
			f := u.data[r*n+k] / u.data[k*n+k]
			if f == 0 {
				continue
			}
			l.data[r*n+k] = f
			_ = u.AddScaledRow(k, r, -f)
		}
	}
	return &LUResult{P: p, L: l, U: u, Swaps: swaps}, nil
}

// Determinant returns det(a) from its LU factorisation.
func Determinant(a *Dense) (float64, error) {
	lu, err := LU(a)
	if err != nil {
		return 0, err
	}
	det := 1.0
	for i := range a.rows {
		det *= lu.U.data[i*a.rows+i]
	}
	if lu.Swaps%2 == 1 {
		det = -det
	}
	return det, nil
}

// Inverse returns a⁻¹ by Gauss-Jordan elimination with partial pivoting.
func Inverse(a *Dense) (*Dense, error) {
	if err := validation.ValidateSquare(a, "Inverse"); err != nil {
		return nil, err
	}
	n := a.rows
	work := a.Clone()
	inv, _ := Identity(n)

	for k := range n {
		pivot := k
		for r := k + 1; r < n; r++ {
			if math.Abs(work.data[r*n+k]) > math.Abs(work.data[pivot*n+k]) {
				pivot = r
			}
		}
		if work.data[pivot*n+k] == 0 {
			return nil, &errors.MatrixError{
				Op:      "Inverse",
				Row:     k,
				Message: "no pivot in column",
				Cause:   errors.ErrSingular,
			}
		}
		_ = work.SwapRows(k, pivot)
		_ = inv.SwapRows(k, pivot)

		d := 1 / work.data[k*n+k]
		_ = work.ScaleRow(k, d)
		_ = inv.ScaleRow(k, d)

		for r := range n {
			if r == k {
				continue
			}
			f := work.data[r*n+k]
			if f == 0 {
				continue
			}
			_ = work.AddScaledRow(k, r, -f)
			_ = inv.AddScaledRow(k, r, -f)
		}
	}
	return inv, nil
}

// firstNonZero returns the first row >= from with a non-zero value in col, or -1.
func firstNonZero(m *Dense, col, from int) int {
	for r := from; r < m.rows; r++ {
		if m.data[r*m.cols+col] != 0 {
			return r
		}
	}
	return -1
}
