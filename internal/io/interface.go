// Package io reads and writes matrices as CSV, JSON and Parquet.
//
// Every format stores one matrix row per record. CSV and JSON carry the
// values as text; Parquet stores one float64 column per matrix column,
// named c0, c1, ... as produced by matrix.Schema.
//
// Key components:
//   - MatrixReader/MatrixWriter interfaces for pluggable formats
//   - CSVReader/CSVWriter with delimiter, comment and header options
//   - JSONReader/JSONWriter for an array of rows or one row per line
//   - ParquetReader/ParquetWriter with a selectable compression codec
//   - FormatFromPath, ReadFile and WriteFile for extension-driven I/O
//
// Memory management: Parquet reads allocate Arrow buffers from the
// supplied allocator and release them before returning.
package io

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	merrors "github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

const (
	// DefaultBatchSize is the default batch size for Parquet writes
	DefaultBatchSize = 1000
)

// MatrixReader defines the interface for reading a matrix from a source
type MatrixReader interface {
	// Read reads the whole source and returns the matrix it holds
	Read() (*matrix.Dense, error)
}

// MatrixWriter defines the interface for writing a matrix to a destination
type MatrixWriter interface {
	// Write writes every row of m to the destination
	Write(m *matrix.Dense) error
}

// Format identifies a supported file format.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatJSONLines
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatJSONLines:
		return "jsonl"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONLines, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return 0, merrors.NewInvalidInputError("FormatFromPath",
			fmt.Sprintf("unsupported file extension for %q", path))
	}
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains column names
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    false,
	}
}

// CSVReader reads CSV data into a matrix
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions) *CSVReader {
	return &CSVReader{reader: reader, options: options}
}

// CSVWriter writes matrices in CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{writer: writer, options: options}
}

// JSONOptions contains configuration options for JSON operations
type JSONOptions struct {
	// Lines selects one JSON row array per line instead of one array of rows
	Lines bool
	// Indent pretty-prints array output
	Indent bool
}

// DefaultJSONOptions returns default JSON options
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{}
}

// JSONReader reads JSON data into a matrix
type JSONReader struct {
	reader  io.Reader
	options JSONOptions
}

// NewJSONReader creates a new JSON reader with the specified options
func NewJSONReader(reader io.Reader, options JSONOptions) *JSONReader {
	return &JSONReader{reader: reader, options: options}
}

// JSONWriter writes matrices in JSON format
type JSONWriter struct {
	writer  io.Writer
	options JSONOptions
}

// NewJSONWriter creates a new JSON writer with the specified options
func NewJSONWriter(writer io.Writer, options JSONOptions) *JSONWriter {
	return &JSONWriter{writer: writer, options: options}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression is one of snappy, gzip, zstd, lz4 or uncompressed
	Compression string
	// BatchSize for writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data into a matrix
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ParquetReader{reader: reader, options: options, mem: mem}
}

// ParquetWriter writes matrices in Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{writer: writer, options: options, mem: memory.NewGoAllocator()}
}

// NewReader returns a reader for format with default options.
func NewReader(format Format, r io.Reader, mem memory.Allocator) (MatrixReader, error) {
	switch format {
	case FormatCSV:
		return NewCSVReader(r, DefaultCSVOptions()), nil
	case FormatJSON:
		return NewJSONReader(r, DefaultJSONOptions()), nil
	case FormatJSONLines:
		return NewJSONReader(r, JSONOptions{Lines: true}), nil
	case FormatParquet:
		return NewParquetReader(r, DefaultParquetOptions(), mem), nil
	default:
		return nil, merrors.NewInvalidInputError("NewReader", "unsupported format "+format.String())
	}
}

// NewWriter returns a writer for format with default options.
func NewWriter(format Format, w io.Writer) (MatrixWriter, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(w, DefaultCSVOptions()), nil
	case FormatJSON:
		return NewJSONWriter(w, DefaultJSONOptions()), nil
	case FormatJSONLines:
		return NewJSONWriter(w, JSONOptions{Lines: true}), nil
	case FormatParquet:
		return NewParquetWriter(w, DefaultParquetOptions()), nil
	default:
		return nil, merrors.NewInvalidInputError("NewWriter", "unsupported format "+format.String())
	}
}

// ReadFile reads the matrix stored at path, picking the format from its extension.
func ReadFile(path string, mem memory.Allocator) (*matrix.Dense, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := NewReader(format, f, mem)
	if err != nil {
		return nil, err
	}
	return reader.Read()
}

// WriteFile writes m to path, picking the format from its extension.
func WriteFile(path string, m *matrix.Dense) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		// The Parquet writer closes the file itself.
		if cerr := f.Close(); cerr != nil && err == nil && !errors.Is(cerr, os.ErrClosed) {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	writer, err := NewWriter(format, f)
	if err != nil {
		return err
	}
	return writer.Write(m)
}
