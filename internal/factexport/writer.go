// Package factexport writes converted observation facts to Parquet so a dry
// run can be inspected without touching the data warehouse.
package factexport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/aktin/p21import/internal/model"
)

const flushInterval = 100_000

// Writer writes fact rows to a Parquet file.
type Writer struct {
	file   *os.File
	writer *parquet.GenericWriter[Row]
	count  int64
}

// Create opens path for writing, replacing an existing file.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create fact export: %w", err)
	}
	writer := parquet.NewGenericWriter[Row](file,
		parquet.Compression(&parquet.Snappy),
	)
	return &Writer{file: file, writer: writer}, nil
}

// WriteFacts writes the facts of one source record.
func (w *Writer) WriteFacts(sourceID string, kind model.FileKind, facts []model.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	rows := make([]Row, len(facts))
	for i, f := range facts {
		rows[i] = NewRow(sourceID, kind, f)
	}
	if _, err := w.writer.Write(rows); err != nil {
		return fmt.Errorf("write fact rows: %w", err)
	}
	before := w.count
	w.count += int64(len(rows))
	if w.count/flushInterval != before/flushInterval {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("flush facts: %w", err)
		}
	}
	return nil
}

// Count returns the number of rows written.
func (w *Writer) Count() int64 { return w.count }

// Close flushes and closes the writer.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close fact writer: %w", err)
	}
	return w.file.Close()
}

// ReadAll reads every row of an export file.
func ReadAll(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fact export: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat fact export: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	rows := make([]Row, 0, reader.NumRows())
	buf := make([]Row, 1024)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("read fact rows: %w", err)
		}
	}
}
