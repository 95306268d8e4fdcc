package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

// Read reads JSON data and returns a matrix.
func (r *JSONReader) Read() (*matrix.Dense, error) {
	var rows [][]float64
	var err error
	if r.options.Lines {
		rows, err = r.readLines()
	} else {
		rows, err = r.readArray()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewInvalidShapeError("ReadJSON", "no data rows")
	}
	return matrix.NewFromRows(rows...)
}

// readArray reads a single array of row arrays, e.g. [[1,2],[3,4]].
func (r *JSONReader) readArray() ([][]float64, error) {
	var rows [][]float64
	if err := json.NewDecoder(r.reader).Decode(&rows); err != nil {
		return nil, &errors.MatrixError{
			Op:      "ReadJSON",
			Row:     errors.NoRow,
			Message: fmt.Sprintf("decoding JSON array: %v", err),
			Cause:   errors.ErrInvalidInput,
		}
	}
	return rows, nil
}

// readLines reads one row array per line. Blank lines are skipped.
func (r *JSONReader) readLines() ([][]float64, error) {
	scanner := bufio.NewScanner(r.reader)
	var rows [][]float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row []float64
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, &errors.MatrixError{
				Op:      "ReadJSON",
				Row:     len(rows),
				Message: fmt.Sprintf("decoding JSON line: %v", err),
				Cause:   errors.ErrInvalidInput,
			}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning JSON lines: %w", err)
	}
	return rows, nil
}

// Write writes m as JSON. NaN and ±Inf have no JSON encoding and are
// rejected before anything is written.
func (w *JSONWriter) Write(m *matrix.Dense) error {
	if m == nil {
		return errors.NewInvalidInputError("WriteJSON", "matrix is nil")
	}
	rows := make([][]float64, m.Rows())
	for r := range rows {
		if err := matrix.CheckRowFinite(m, r); err != nil {
			return err
		}
		rows[r], _ = m.RawRow(r)
	}

	if w.options.Lines {
		return w.writeLines(rows)
	}
	encoder := json.NewEncoder(w.writer)
	if w.options.Indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(rows); err != nil {
		return fmt.Errorf("encoding JSON array: %w", err)
	}
	return nil
}

func (w *JSONWriter) writeLines(rows [][]float64) error {
	buffered := bufio.NewWriter(w.writer)
	encoder := json.NewEncoder(buffered)
	for r, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return fmt.Errorf("encoding row %d: %w", r, err)
		}
	}
	return buffered.Flush()
}
