package csvread

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Writer emits ';'-separated records in the P21 dialect.
type Writer struct {
	csv *csv.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	c := csv.NewWriter(w)
	c.Comma = Separator
	return &Writer{csv: c}
}

// Write writes one record.
func (w *Writer) Write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Flush writes buffered data and reports any write error.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
