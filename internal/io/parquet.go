package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

// Read reads Parquet data and returns a matrix. Every column must be float64.
func (r *ParquetReader) Read() (*matrix.Dense, error) {
	// Parquet needs random access to the footer.
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	if table.NumRows() == 0 || table.NumCols() == 0 {
		return nil, errors.NewInvalidShapeError("ReadParquet", "no data rows")
	}
	return matrix.FromTable(table)
}

// Write writes m in Parquet format, one float64 column per matrix column.
func (w *ParquetWriter) Write(m *matrix.Dense) error {
	if m == nil {
		return errors.NewInvalidInputError("WriteParquet", "matrix is nil")
	}
	compression, err := compressionCodec(w.options.Compression)
	if err != nil {
		return err
	}
	batchSize := w.options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(batchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(w.mem))

	record := m.ToRecord(w.mem)
	defer record.Release()

	writer, err := pqarrow.NewFileWriter(record.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

func compressionCodec(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, errors.NewInvalidInputError("WriteParquet",
			fmt.Sprintf("unknown compression %q", name))
	}
}
