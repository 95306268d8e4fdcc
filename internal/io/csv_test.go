package io_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/io"
	"github.com/paveg/parmat/internal/testutil"
)

func TestCSVReader(t *testing.T) {
	t.Run("reads rows", func(t *testing.T) {
		reader := io.NewCSVReader(strings.NewReader("2,-3\n-1,4\n"), io.DefaultCSVOptions())
		m, err := reader.Read()
		require.NoError(t, err)
		testutil.AssertMatrixEqual(t, testutil.MustMatrix(t, []float64{2, -3}, []float64{-1, 4}), m)
	})

	t.Run("skips header", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Header = true
		reader := io.NewCSVReader(strings.NewReader("c0,c1,c2\n1,2.5,3e2\n"), opts)
		m, err := reader.Read()
		require.NoError(t, err)
		testutil.AssertMatrixEqual(t, testutil.MustMatrix(t, []float64{1, 2.5, 300}), m)
	})

	t.Run("custom delimiter comment and spacing", func(t *testing.T) {
		opts := io.CSVOptions{Delimiter: ';', Comment: '#', SkipInitialSpace: true}
		data := "# generated\n1; 2\n# middle\n3; 4\n"
		m, err := io.NewCSVReader(strings.NewReader(data), opts).Read()
		require.NoError(t, err)
		testutil.AssertMatrixEqual(t, testutil.MustMatrix(t, []float64{1, 2}, []float64{3, 4}), m)
	})

	t.Run("non-numeric cell", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader("1,2\n3,x\n"), io.DefaultCSVOptions()).Read()
		require.ErrorIs(t, err, errors.ErrInvalidInput)

		var me *errors.MatrixError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, 1, me.Row)
		assert.Contains(t, me.Message, "column 1")
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader("1,2\n3\n"), io.DefaultCSVOptions()).Read()
		require.ErrorIs(t, err, errors.ErrInvalidShape)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader(""), io.DefaultCSVOptions()).Read()
		require.ErrorIs(t, err, errors.ErrInvalidShape)

		opts := io.DefaultCSVOptions()
		opts.Header = true
		_, err = io.NewCSVReader(strings.NewReader("c0,c1\n"), opts).Read()
		require.ErrorIs(t, err, errors.ErrInvalidShape)
	})

	t.Run("malformed quoting", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader("\"1,2\n"), io.DefaultCSVOptions()).Read()
		require.Error(t, err)
	})
}

func TestCSVWriter(t *testing.T) {
	m := testutil.MustMatrix(t, []float64{1, 2.5}, []float64{-3, 1e-7})

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(m))
		assert.Equal(t, "1,2.5\n-3,1e-07\n", buf.String())
	})

	t.Run("header and delimiter", func(t *testing.T) {
		var buf bytes.Buffer
		opts := io.CSVOptions{Delimiter: '\t', Header: true}
		require.NoError(t, io.NewCSVWriter(&buf, opts).Write(m))
		assert.Equal(t, "c0\tc1\n1\t2.5\n-3\t1e-07\n", buf.String())
	})

	t.Run("round trip", func(t *testing.T) {
		src := testutil.RandomMatrix(t, 7, 5)
		var buf bytes.Buffer
		opts := io.CSVOptions{Delimiter: ',', Header: true}
		require.NoError(t, io.NewCSVWriter(&buf, opts).Write(src))

		got, err := io.NewCSVReader(&buf, opts).Read()
		require.NoError(t, err)
		testutil.AssertMatrixEqual(t, src, got)
	})

	t.Run("nil matrix", func(t *testing.T) {
		var buf bytes.Buffer
		err := io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(nil)
		require.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}
