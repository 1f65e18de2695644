package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/csvread"
	"github.com/aktin/p21import/internal/model"
)

var (
	// ErrMissingFile is returned when the mandatory fall.csv is absent.
	ErrMissingFile = errors.New("mandatory file missing")
	// ErrMissingColumns is returned when a file lacks required columns.
	ErrMissingColumns = errors.New("required columns missing")
	// ErrNoValidEncounters is returned when fall.csv has no valid record.
	ErrNoValidEncounters = errors.New("no valid encounter found")
)

// Options configures a Verifier.
type Options struct {
	ChunkSize int
	// Log is used as is; callers tag it with logging.ForKind.
	Log zerolog.Logger
}

// Verifier checks one CSV file of an extracted export against its column
// grammar and streams its valid records.
type Verifier struct {
	spec      Spec
	path      string
	chunkSize int
	log       zerolog.Logger
}

// New returns a Verifier for the file of kind inside folder.
func New(kind model.FileKind, folder string, opts Options) *Verifier {
	size := opts.ChunkSize
	if size <= 0 {
		size = csvread.DefaultChunkSize
	}
	return &Verifier{
		spec:      SpecFor(kind),
		path:      filepath.Join(folder, kind.FileName()),
		chunkSize: size,
		log:       opts.Log,
	}
}

// Kind returns the file kind being verified.
func (v *Verifier) Kind() model.FileKind {
	return v.spec.Kind
}

// Path returns the file path being verified.
func (v *Verifier) Path() string {
	return v.path
}

// Spec returns the column grammar in use.
func (v *Verifier) Spec() Spec {
	return v.spec
}

// IsPresent reports whether the file exists. A missing mandatory file is an
// error; a missing optional file is logged and reported as absent.
func (v *Verifier) IsPresent() (bool, error) {
	info, err := os.Stat(v.path)
	if err == nil && info.Mode().IsRegular() {
		return true, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", v.path, err)
	}
	if v.spec.Kind.Required() {
		return false, fmt.Errorf("%s: %w", v.spec.Kind, ErrMissingFile)
	}
	v.log.Warn().Msg("optional file not found in archive, skipping")
	return false, nil
}

// CheckColumns verifies that the header contains every checked column.
func (v *Verifier) CheckColumns() error {
	r, err := csvread.Open(v.path)
	if err != nil {
		return err
	}
	defer r.Close()

	have := r.Columns()
	var missing []string
	for _, name := range v.spec.Names() {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s: %w: %s", v.spec.Kind, ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// CleanChunk applies the rule of one column to every row. An empty value
// drops the row when the column is mandatory. A value violating the grammar
// drops the row when mandatory and is cleared otherwise. Rows are modified
// in place; the surviving rows are returned in their original order.
func (v *Verifier) CleanChunk(rows []model.Row, column string) []model.Row {
	c, ok := v.column(column)
	if !ok {
		return rows
	}
	kept := rows[:0]
	for _, row := range rows {
		val := row[c.Name]
		switch {
		case val == "":
			if c.Mandatory {
				v.drop(row, c.Name, "empty mandatory field")
				continue
			}
		case !c.Valid(val):
			if c.Mandatory {
				v.drop(row, c.Name, "invalid mandatory field")
				continue
			}
			row[c.Name] = ""
		}
		kept = append(kept, row)
	}
	return kept
}

// CleanAll applies CleanChunk for every checked column in order.
func (v *Verifier) CleanAll(rows []model.Row) []model.Row {
	for _, c := range v.spec.Columns {
		rows = v.CleanChunk(rows, c.Name)
	}
	return rows
}

func (v *Verifier) column(name string) (Column, bool) {
	for _, c := range v.spec.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (v *Verifier) drop(row model.Row, column, reason string) {
	v.log.Debug().
		Str("column", column).
		Str("encounter", row[model.IDColumn]).
		Msg(reason)
}

// Stream reads the file chunk by chunk and calls fn with the raw records of
// each chunk. It stops at the first error returned by fn.
func (v *Verifier) Stream(ctx context.Context, fn func([]model.Row) error) error {
	r, err := csvread.Open(v.path)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := r.ReadChunk(v.chunkSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", v.spec.Kind, err)
		}
		if err := fn(rows); err != nil {
			return err
		}
	}
}

// ValidIdentifiers returns the unique encounter identifiers of all rows that
// survive validation. For fall.csv an empty result is an error.
func (v *Verifier) ValidIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := v.Stream(ctx, func(rows []model.Row) error {
		for _, row := range v.CleanAll(rows) {
			ids[row[model.IDColumn]] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && v.spec.Kind.Required() {
		return nil, fmt.Errorf("%s: %w", v.spec.Kind, ErrNoValidEncounters)
	}
	return ids, nil
}

// AdmissionDates maps each valid encounter identifier of fall.csv to its raw
// admission timestamp. A later row wins over an earlier one.
func (v *Verifier) AdmissionDates(ctx context.Context) (map[string]string, error) {
	if v.spec.Kind != model.KindEncounter {
		return nil, fmt.Errorf("admission dates are only available for %s", model.KindEncounter)
	}
	dates := make(map[string]string)
	err := v.Stream(ctx, func(rows []model.Row) error {
		for _, row := range v.CleanAll(rows) {
			dates[row[model.IDColumn]] = row[model.AdmissionColumn]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%s: %w", v.spec.Kind, ErrNoValidEncounters)
	}
	return dates, nil
}

// CountRows returns the number of data records in the file.
func (v *Verifier) CountRows(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return csvread.CountRecords(v.path)
}
