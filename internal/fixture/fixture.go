// Package fixture generates synthetic P21 exports for local runs and tests.
package fixture

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aktin/p21import/internal/csvread"
)

// Options controls the shape of a generated export.
type Options struct {
	Encounters int
	FirstID    int
	// InvalidIDs are encounter ids whose fall.csv record breaks a mandatory
	// column, so validation must drop them.
	InvalidIDs []string
	// Optional adds fab.csv, icd.csv and ops.csv.
	Optional bool
	Start    time.Time
}

// DefaultOptions mirrors the verification export: 4000 encounters of which
// 1021, 1022 and 1023 are invalid.
func DefaultOptions() Options {
	return Options{
		Encounters: 4000,
		FirstID:    1000,
		InvalidIDs: []string{"1021", "1022", "1023"},
		Optional:   true,
		Start:      time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

// Export holds the generated CSV files keyed by file name.
type Export struct {
	Files map[string][]byte
	IDs   []string
}

var (
	encounterHeader = []string{
		"IK", "Entlassender-Standort", "KH-internes-Kennzeichen", "IK-der-Krankenkasse", "Geburtsjahr",
		"Geschlecht", "PLZ", "Aufnahmedatum", "Aufnahmegrund", "Aufnahmeanlass", "Fallzusammenführung",
		"Fallzusammenführungsgrund", "Verweildauer-intensiv", "Entlassungsdatum", "Entlassungsgrund",
		"Beatmungsstunden", "Behandlungsbeginn-vorstationär", "Behandlungstage-vorstationär",
		"Behandlungsende-nachstationär", "Behandlungstage-nachstationär",
	}
	departmentHeader = []string{
		"IK", "KH-internes-Kennzeichen", "FAB", "FAB-Aufnahmedatum", "FAB-Entlassungsdatum", "Kennung-Intensivbett",
	}
	diagnosisHeader = []string{
		"IK", "KH-internes-Kennzeichen", "Diagnoseart", "ICD-Version", "ICD-Kode", "Lokalisation",
		"Diagnosensicherheit", "Sekundär-Kode", "Lokalisation", "Diagnosensicherheit",
	}
	procedureHeader = []string{
		"IK", "KH-internes-Kennzeichen", "OPS-Version", "OPS-Kode", "Lokalisation", "OPS-Datum", "Belegoperateur",
	}
)

const (
	hospitalIK = "260100023"
	stamp      = "200601021504"
	day        = "20060102"
)

// Generate builds an export from opts.
func Generate(opts Options) (*Export, error) {
	if opts.Start.IsZero() {
		opts.Start = DefaultOptions().Start
	}
	fall := newTable(encounterHeader)
	fab := newTable(departmentHeader)
	icd := newTable(diagnosisHeader)
	ops := newTable(procedureHeader)

	exp := &Export{Files: map[string][]byte{}}
	for i := 0; i < opts.Encounters; i++ {
		id := strconv.Itoa(opts.FirstID + i)
		exp.IDs = append(exp.IDs, id)
		adm := opts.Start.Add(time.Duration(i) * time.Hour)
		dis := adm.Add(5 * 24 * time.Hour)

		rec := encounterRecord(i, id, adm, dis)
		if slices.Contains(opts.InvalidIDs, id) {
			breakRecord(rec, i)
		}
		if err := fall.add(rec); err != nil {
			return nil, err
		}
		if !opts.Optional {
			continue
		}
		if err := fab.add(departmentRecord(i, id, adm, dis)); err != nil {
			return nil, err
		}
		for _, r := range diagnosisRecords(i, id) {
			if err := icd.add(r); err != nil {
				return nil, err
			}
		}
		if err := ops.add(procedureRecord(i, id, adm)); err != nil {
			return nil, err
		}
	}

	var err error
	if exp.Files["FALL.csv"], err = fall.bytes(); err != nil {
		return nil, err
	}
	if opts.Optional {
		if exp.Files["FAB.csv"], err = fab.bytes(); err != nil {
			return nil, err
		}
		if exp.Files["ICD.csv"], err = icd.bytes(); err != nil {
			return nil, err
		}
		if exp.Files["OPS.csv"], err = ops.bytes(); err != nil {
			return nil, err
		}
	}
	return exp, nil
}

func encounterRecord(i int, id string, adm, dis time.Time) []string {
	admission := adm.Format(stamp)
	if i%97 == 0 {
		admission = adm.Format(day) + "2400"
	}
	plz := strconv.Itoa(10000 + i%89999)
	if i%5 == 0 {
		plz = strconv.Itoa(1000 + i%9000)
	}
	rec := []string{
		hospitalIK, "00", id, "161556856", strconv.Itoa(1940 + i%60),
		string("mwdx"[i%4]), plz, admission, "0101", string("EZNRVAGB"[i%8]), "N",
		"", "", dis.Format(stamp), "019",
		"", "", "", "", "",
	}
	if i%20 == 0 {
		rec[10], rec[11] = "J", "OG"
	}
	if i%3 == 0 {
		rec[12] = "1,50"
	}
	if i%4 == 0 {
		rec[15] = "12,00"
	}
	if i%6 == 0 {
		rec[16], rec[17] = adm.AddDate(0, 0, -2).Format(day), "2"
	}
	if i%9 == 0 {
		rec[18] = dis.AddDate(0, 0, 3).Format(day)
	}
	return rec
}

// breakRecord invalidates one mandatory column of an encounter record.
func breakRecord(rec []string, i int) {
	switch i % 3 {
	case 0:
		rec[7] = ""
	case 1:
		rec[8] = "ABCD"
	default:
		rec[9] = "X"
	}
}

func departmentRecord(i int, id string, adm, dis time.Time) []string {
	intensive := "N"
	if i%10 == 0 {
		intensive = "J"
	}
	end := dis.Format(stamp)
	if i%7 == 0 {
		end = ""
	}
	return []string{hospitalIK, id, "HA0100", adm.Format(stamp), end, intensive}
}

func diagnosisRecords(i int, id string) [][]string {
	loc, cert := "", ""
	if i%2 == 0 {
		loc, cert = "L", "G"
	}
	primary := []string{hospitalIK, id, "HD", "2020", "F2424", loc, cert, "", "", ""}
	if i%5 == 0 {
		primary[7], primary[8], primary[9] = "G2525", "R", "V"
	}
	secondary := []string{hospitalIK, id, "ND", "2020", "J90", "", "", "", "", ""}
	return [][]string{primary, secondary}
}

func procedureRecord(i int, id string, adm time.Time) []string {
	loc := ""
	if i%3 == 0 {
		loc = "B"
	}
	return []string{hospitalIK, id, "2020", "964922", loc, adm.Add(2 * time.Hour).Format(stamp), "N"}
}

type table struct {
	buf bytes.Buffer
	w   *csvread.Writer
}

func newTable(header []string) *table {
	t := &table{}
	t.w = csvread.NewWriter(&t.buf)
	t.w.Write(header)
	return t
}

func (t *table) add(rec []string) error {
	return t.w.Write(rec)
}

func (t *table) bytes() ([]byte, error) {
	if err := t.w.Flush(); err != nil {
		return nil, err
	}
	return t.buf.Bytes(), nil
}

// WriteDir writes the files of the export into dir using lowercase names,
// the layout of an extracted archive.
func (e *Export) WriteDir(dir string) error {
	for name, data := range e.Files {
		path := filepath.Join(dir, strings.ToLower(name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// WriteZip writes the export as a zip archive to path.
func (e *Export) WriteZip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(e.Files))
	for name := range e.Files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			f.Close()
			return fmt.Errorf("zip entry %s: %w", name, err)
		}
		if _, err := w.Write(e.Files[name]); err != nil {
			f.Close()
			return fmt.Errorf("zip write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close zip: %w", err)
	}
	return f.Close()
}

