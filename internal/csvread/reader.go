package csvread

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// Separator is the field delimiter of P21 exports.
const Separator = ';'

// DefaultChunkSize is the number of records handed out per chunk.
const DefaultChunkSize = 10000

// ErrTooManyFields is returned for a record wider than the header.
var ErrTooManyFields = errors.New("more fields than header columns")

// ErrInvalidUTF8 matches input that is not valid UTF-8.
var ErrInvalidUTF8 = encoding.ErrInvalidUTF8

// Reader streams a ';'-separated P21 CSV file. The header is normalized
// with normalize.ColumnName; a UTF-8 byte order mark is dropped. Bytes
// that are not valid UTF-8 fail the read instead of being replaced.
type Reader struct {
	name   string
	file   *os.File
	csv    *csv.Reader
	header []string
	rowNum int64
}

// Open opens path and reads its header line.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := newReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = file
	r.name = filepath.Base(path)
	return r, nil
}

// NewReader reads CSV from an arbitrary source. Close is a no-op for it.
func NewReader(src io.Reader) (*Reader, error) {
	r, err := newReader(src)
	if err != nil {
		return nil, err
	}
	r.name = "input"
	return r, nil
}

func newReader(src io.Reader) (*Reader, error) {
	decoded := transform.NewReader(src, transform.Chain(
		encoding.UTF8Validator,
		unicode.BOMOverride(transform.Nop),
	))
	c := csv.NewReader(bufio.NewReaderSize(decoded, 256*1024))
	c.Comma = Separator
	c.LazyQuotes = true
	c.FieldsPerRecord = -1

	raw, err := c.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: no header line")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := make([]string, len(raw))
	for i, h := range raw {
		header[i] = normalize.ColumnName(h)
	}
	return &Reader{csv: c, header: header}, nil
}

// Header returns the normalized column names in file order.
func (r *Reader) Header() []string {
	return r.header
}

// Columns returns the header as a set.
func (r *Reader) Columns() map[string]struct{} {
	set := make(map[string]struct{}, len(r.header))
	for _, h := range r.header {
		set[h] = struct{}{}
	}
	return set
}

// RowNum returns the number of data records read so far.
func (r *Reader) RowNum() int64 {
	return r.rowNum
}

// ReadRecord returns the next data record padded to the header width. A
// record with more fields than the header is an error. It returns io.EOF
// after the last record.
func (r *Reader) ReadRecord() ([]string, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%s: record %d: %w", r.name, r.rowNum+1, err)
	}
	r.rowNum++
	if len(rec) > len(r.header) {
		return nil, fmt.Errorf("%s: record %d: %d fields: %w", r.name, r.rowNum, len(rec), ErrTooManyFields)
	}
	if len(rec) < len(r.header) {
		rec = append(rec, make([]string, len(r.header)-len(rec))...)
	}
	return rec, nil
}

// ReadChunk reads up to n records keyed by column name. It returns io.EOF
// only when no records are left, so a short final chunk comes with a nil
// error.
func (r *Reader) ReadChunk(n int) ([]model.Row, error) {
	if n <= 0 {
		n = DefaultChunkSize
	}
	rows := make([]model.Row, 0, n)
	for len(rows) < n {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		row := make(model.Row, len(r.header))
		for i, col := range r.header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// CountRecords returns the number of data records in the file at path.
func CountRecords(path string) (int64, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	for {
		_, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return r.RowNum(), nil
		}
		if err != nil {
			return r.RowNum(), err
		}
	}
}
