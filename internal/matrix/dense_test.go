package matrix_test

import (
	"math"
	"math/rand"
	"testing"

	mxerrors "github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRows(t *testing.T, rows ...[]float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewFromRows(rows...)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	m, err := matrix.New(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, make([]float64, 6), m.Data())

	_, err = matrix.New(0, 2)
	assert.ErrorIs(t, err, mxerrors.ErrInvalidShape)
}

func TestConstructors(t *testing.T) {
	t.Run("FromRows ragged", func(t *testing.T) {
		_, err := matrix.NewFromRows([]float64{1, 2}, []float64{3})
		assert.ErrorIs(t, err, mxerrors.ErrInvalidShape)
	})

	t.Run("FromRows empty", func(t *testing.T) {
		_, err := matrix.NewFromRows()
		assert.ErrorIs(t, err, mxerrors.ErrInvalidShape)
	})

	t.Run("FromSlice length mismatch", func(t *testing.T) {
		_, err := matrix.NewFromSlice(2, 2, []float64{1, 2, 3})
		assert.ErrorIs(t, err, mxerrors.ErrInvalidShape)
	})

	t.Run("FromSlice copies input", func(t *testing.T) {
		data := []float64{1, 2, 3, 4}
		m, err := matrix.NewFromSlice(2, 2, data)
		require.NoError(t, err)
		data[0] = 99
		v, _ := m.At(0, 0)
		assert.InDelta(t, 1.0, v, 0)
	})

	t.Run("Vectors", func(t *testing.T) {
		row, err := matrix.NewRowVector(1, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, row.Rows())
		assert.Equal(t, 3, row.Cols())

		col, err := matrix.NewColumnVector(1, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, col.Rows())
		assert.Equal(t, 1, col.Cols())

		_, err = matrix.NewRowVector()
		assert.ErrorIs(t, err, mxerrors.ErrInvalidShape)
	})

	t.Run("Identity", func(t *testing.T) {
		id, err := matrix.Identity(3)
		require.NoError(t, err)
		expected := mustRows(t, []float64{1, 0, 0}, []float64{0, 1, 0}, []float64{0, 0, 1})
		assert.True(t, id.Equal(expected))
	})
}

func TestAccessors(t *testing.T) {
	m := mustRows(t, []float64{1, 2, 3}, []float64{4, 5, 6}, []float64{7, 8, 9})

	v, err := m.At(1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, v, 0)

	row, err := m.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, row)

	col, err := m.Col(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 7}, col)

	require.NoError(t, m.SetRow(1, []float64{4, 5, 2}))
	require.NoError(t, m.SetCol(2, []float64{-3, 7, 1}))
	assert.True(t, m.Equal(mustRows(t, []float64{1, 2, -3}, []float64{4, 5, 7}, []float64{7, 8, 1})))

	t.Run("Out of range", func(t *testing.T) {
		_, err := m.At(3, 0)
		require.ErrorIs(t, err, mxerrors.ErrIndexOutOfRange)

		assert.ErrorIs(t, m.Set(0, -1, 1), mxerrors.ErrIndexOutOfRange)

		_, err = m.Row(5)
		assert.ErrorIs(t, err, mxerrors.ErrIndexOutOfRange)
	})

	t.Run("Wrong length", func(t *testing.T) {
		assert.ErrorIs(t, m.SetRow(0, []float64{1}), mxerrors.ErrDimensionMismatch)
		assert.ErrorIs(t, m.SetCol(0, []float64{1, 2, 3, 4}), mxerrors.ErrDimensionMismatch)
	})

	t.Run("Row copies, RawRow aliases", func(t *testing.T) {
		row, _ := m.Row(0)
		row[0] = 100
		v, _ := m.At(0, 0)
		assert.InDelta(t, 1.0, v, 0)

		raw, err := m.RawRow(0)
		require.NoError(t, err)
		raw[0] = 100
		v, _ = m.At(0, 0)
		assert.InDelta(t, 100.0, v, 0)
		assert.Equal(t, 3, cap(raw))
	})
}

func TestRowAndColumnOperations(t *testing.T) {
	m := mustRows(t, []float64{1, 2}, []float64{3, 4})

	require.NoError(t, m.SwapRows(0, 1))
	assert.True(t, m.Equal(mustRows(t, []float64{3, 4}, []float64{1, 2})))

	require.NoError(t, m.SwapCols(0, 1))
	assert.True(t, m.Equal(mustRows(t, []float64{4, 3}, []float64{2, 1})))

	require.NoError(t, m.ScaleRow(0, 2))
	assert.True(t, m.Equal(mustRows(t, []float64{8, 6}, []float64{2, 1})))

	require.NoError(t, m.ScaleCol(1, -1))
	assert.True(t, m.Equal(mustRows(t, []float64{8, -6}, []float64{2, -1})))

	require.NoError(t, m.AddScaledRow(1, 0, -4))
	assert.True(t, m.Equal(mustRows(t, []float64{0, -2}, []float64{2, -1})))

	require.NoError(t, m.AddScaledCol(0, 1, 1))
	assert.True(t, m.Equal(mustRows(t, []float64{0, -2}, []float64{2, 1})))

	m.Apply(func(v float64) float64 { return v + 1 })
	assert.True(t, m.Equal(mustRows(t, []float64{1, -1}, []float64{3, 2})))

	assert.ErrorIs(t, m.SwapRows(0, 2), mxerrors.ErrIndexOutOfRange)
	assert.ErrorIs(t, m.AddScaledCol(0, 9, 1), mxerrors.ErrIndexOutOfRange)
}

func TestEqualityAndFingerprint(t *testing.T) {
	a := mustRows(t, []float64{1, 2}, []float64{3, 4})
	b := a.Clone()

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, b.Set(1, 1, 4.0000001))
	assert.False(t, a.Equal(b))
	assert.True(t, a.EqualApprox(b, 1e-6))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	// Same data, different shape.
	c, err := matrix.NewFromSlice(1, 4, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	negZero, _ := matrix.NewRowVector(math.Copysign(0, -1))
	posZero, _ := matrix.NewRowVector(0)
	assert.True(t, negZero.Equal(posZero))
	assert.Equal(t, negZero.Fingerprint(), posZero.Fingerprint())

	assert.False(t, a.Equal(nil))
}

func TestString(t *testing.T) {
	m := mustRows(t, []float64{1, 2.5}, []float64{-3, 4})
	assert.Equal(t, "|1 2.5|\n|-3 4|", m.String())
}

func TestFillRandom(t *testing.T) {
	m, _ := matrix.New(4, 4)
	m.FillRandom(rand.New(rand.NewSource(7)))
	for _, v := range m.Data() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	again, _ := matrix.New(4, 4)
	again.FillRandom(rand.New(rand.NewSource(7)))
	assert.True(t, m.Equal(again))
}
