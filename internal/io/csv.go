package io

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

// Read reads CSV data and returns a matrix. Every record is one row; with
// Header set the first record is skipped.
func (r *CSVReader) Read() (*matrix.Dense, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	// Ragged rows are reported as a shape error by the matrix constructor.
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if r.options.Header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, errors.NewInvalidShapeError("ReadCSV", "no data rows")
	}

	rows := make([][]float64, len(records))
	for i, record := range records {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, &errors.MatrixError{
					Op:      "ReadCSV",
					Row:     i,
					Message: fmt.Sprintf("column %d: %q is not a number", j, field),
					Cause:   errors.ErrInvalidInput,
				}
			}
			row[j] = v
		}
		rows[i] = row
	}
	return matrix.NewFromRows(rows...)
}

// Write writes m in CSV format. With Header set the first record holds the
// column names c0, c1, ...
func (w *CSVWriter) Write(m *matrix.Dense) error {
	if m == nil {
		return errors.NewInvalidInputError("WriteCSV", "matrix is nil")
	}
	csvWriter := csv.NewWriter(w.writer)
	if w.options.Delimiter != 0 {
		csvWriter.Comma = w.options.Delimiter
	}

	if w.options.Header {
		headers := make([]string, m.Cols())
		for c := range headers {
			headers[c] = matrix.ColumnName(c)
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	record := make([]string, m.Cols())
	for r := range m.Rows() {
		row, err := m.RawRow(r)
		if err != nil {
			return err
		}
		for c, v := range row {
			record[c] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", r, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
