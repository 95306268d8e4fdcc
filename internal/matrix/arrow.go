package matrix

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/parmat/internal/errors"
)

// ColumnName is the Arrow field name used for matrix column c.
func ColumnName(c int) string {
	return "c" + strconv.Itoa(c)
}

// Schema returns the Arrow schema of a matrix with cols columns.
func Schema(cols int) *arrow.Schema {
	fields := make([]arrow.Field, cols)
	for c := range cols {
		fields[c] = arrow.Field{Name: ColumnName(c), Type: arrow.PrimitiveTypes.Float64}
	}
	return arrow.NewSchema(fields, nil)
}

// ToRecord converts m into an Arrow record with one float64 column per
// matrix column. The caller must Release the record.
func (m *Dense) ToRecord(mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	cols := make([]arrow.Array, m.cols)
	b := array.NewFloat64Builder(mem)
	defer b.Release()

	column := make([]float64, m.rows)
	for c := range m.cols {
		for r := range m.rows {
			column[r] = m.data[r*m.cols+c]
		}
		b.AppendValues(column, nil)
		cols[c] = b.NewFloat64Array()
	}

	rec := array.NewRecord(Schema(m.cols), cols, int64(m.rows))
	for _, col := range cols {
		col.Release()
	}
	return rec
}

// FromRecord converts an Arrow record of float64 columns into a matrix.
func FromRecord(rec arrow.Record) (*Dense, error) {
	m, err := New(int(rec.NumRows()), int(rec.NumCols()))
	if err != nil {
		return nil, err
	}
	for c := range int(rec.NumCols()) {
		if err := m.fillColumn(c, rec.ColumnName(c), []arrow.Array{rec.Column(c)}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FromTable converts an Arrow table of float64 columns into a matrix.
func FromTable(table arrow.Table) (*Dense, error) {
	m, err := New(int(table.NumRows()), int(table.NumCols()))
	if err != nil {
		return nil, err
	}
	schema := table.Schema()
	for c := range int(table.NumCols()) {
		chunks := table.Column(c).Data().Chunks()
		if err := m.fillColumn(c, schema.Field(c).Name, chunks); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Dense) fillColumn(c int, name string, chunks []arrow.Array) error {
	r := 0
	for _, chunk := range chunks {
		values, ok := chunk.(*array.Float64)
		if !ok {
			return errors.NewInvalidInputError("FromArrow",
				fmt.Sprintf("column %q has type %s, expected float64", name, chunk.DataType()))
		}
		if r+values.Len() > m.rows {
			return errors.NewDimensionMismatchError("FromArrow",
				fmt.Sprintf("column %q has more than %d values", name, m.rows))
		}
		for i := range values.Len() {
			if values.IsNull(i) {
				return &errors.MatrixError{
					Op:      "FromArrow",
					Row:     r,
					Message: fmt.Sprintf("null value in column %q", name),
					Cause:   errors.ErrNaNInf,
				}
			}
			m.data[r*m.cols+c] = values.Value(i)
			r++
		}
	}
	if r != m.rows {
		return errors.NewDimensionMismatchError("FromArrow",
			fmt.Sprintf("column %q has %d values, expected %d", name, r, m.rows))
	}
	return nil
}
