package preprocess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/csvread"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// ErrAmbiguousColumn is returned when a column rename does not find exactly
// one candidate.
var ErrAmbiguousColumn = errors.New("ambiguous column during header adjustment")

const (
	departmentColumn      = "fachabteilung"
	secondaryCode         = "sekundärkode"
	secondaryLocalisation = "sekundärlokalisation"
	secondaryCertainty    = "sekundärdiagnosensicherheit"
	primaryLocalisation   = "lokalisation"
	primaryCertainty      = "diagnosensicherheit"
	zipCodeColumn         = "plz"
	zipCodeWidth          = 5
	admissionReasonColumn = "aufnahmegrund"
	admissionReasonWidth  = 4
)

// Result describes what was changed in a file.
type Result struct {
	Kind    model.FileKind
	Renamed map[string]string // old column name -> new column name
	Added   []string
	Rows    int64
}

// File rewrites the CSV of the given kind in place so that its header and
// fields match what the validator and converters expect: normalized column
// names, the kind-specific renames, and zero padding of short fields in
// fall.csv.
func File(path string, kind model.FileKind, log zerolog.Logger) (*Result, error) {
	r, err := csvread.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header := slices.Clone(r.Header())
	res := &Result{Kind: kind, Renamed: map[string]string{}}

	switch kind {
	case model.KindDepartment:
		header, err = renameColumn(header, 0, "fab", departmentColumn, res)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
	case model.KindDiagnosis:
		if idx := slices.Index(header, secondaryCode); idx >= 0 {
			header, err = renameColumn(header, idx, primaryLocalisation, secondaryLocalisation, res)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
			header, err = renameColumn(header, idx, primaryCertainty, secondaryCertainty, res)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
		} else {
			res.Added = []string{secondaryCode, secondaryLocalisation, secondaryCertainty}
			header = append(header, res.Added...)
		}
	}

	fixups := rowFixups(kind, header)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".preprocess-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csvread.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return nil, err
	}
	for {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tmp.Close()
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		for _, fix := range fixups {
			rec[fix.index] = normalize.PadLeft(rec[fix.index], fix.width)
		}
		for range res.Added {
			rec = append(rec, "")
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return nil, err
		}
		res.Rows++
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	r.Close()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("replace %s: %w", path, err)
	}

	log.Debug().
		Int64("rows", res.Rows).
		Interface("renamed", res.Renamed).
		Strs("added", res.Added).
		Msg("preprocessed")
	return res, nil
}

type fixup struct {
	index int
	width int
}

func rowFixups(kind model.FileKind, header []string) []fixup {
	if kind != model.KindEncounter {
		return nil
	}
	var fixups []fixup
	if i := slices.Index(header, zipCodeColumn); i >= 0 {
		fixups = append(fixups, fixup{index: i, width: zipCodeWidth})
	}
	if i := slices.Index(header, admissionReasonColumn); i >= 0 {
		fixups = append(fixups, fixup{index: i, width: admissionReasonWidth})
	}
	return fixups
}

// renameColumn renames the single column at or after from whose name is old,
// optionally followed by a numeric suffix (old, old.1, old2). Nothing
// changes when target already exists exactly once in that range.
func renameColumn(header []string, from int, old, target string, res *Result) ([]string, error) {
	tail := header[from:]
	if count(tail, target) == 1 {
		return header, nil
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(old) + `(\.)?(\d*)?$`)
	match := -1
	hits := 0
	for i, col := range tail {
		if pattern.MatchString(col) {
			match = i
			hits++
		}
	}
	if hits != 1 {
		return nil, fmt.Errorf("%w: %d candidates for %s", ErrAmbiguousColumn, hits, old)
	}
	res.Renamed[tail[match]] = target
	tail[match] = target
	return header, nil
}

func count(cols []string, name string) int {
	n := 0
	for _, c := range cols {
		if c == name {
			n++
		}
	}
	return n
}
