package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/config"
	"github.com/aktin/p21import/internal/csvread"
	"github.com/aktin/p21import/internal/factexport"
	"github.com/aktin/p21import/internal/fixture"
	"github.com/aktin/p21import/internal/match"
	"github.com/aktin/p21import/internal/metrics"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
	"github.com/aktin/p21import/internal/store"
)

var testPseudonym = config.Pseudonym{
	Algorithm:     "SHA-1",
	Salt:          "pepper",
	BillingRoot:   "1.2.276.0.76.3.87686.1.45",
	EncounterRoot: "1.2.276.0.76.3.87686.1.45.2",
}

// writeArchive generates an export of n encounters (ids 1000 upwards, with
// 1021-1023 invalid) and returns the zip path.
func writeArchive(t *testing.T, n int, optional bool) string {
	t.Helper()
	opts := fixture.DefaultOptions()
	opts.Encounters = n
	opts.Optional = optional
	exp, err := fixture.Generate(opts)
	if err != nil {
		t.Fatalf("generate fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "p21.zip")
	if err := exp.WriteZip(path); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	return path
}

// seed registers encounters first..first+n-1 as consented identities.
// Encounter i gets encounter_num 100+i and patient_num 500+i.
func seed(t *testing.T, st *store.Memory, source store.IdentitySource, root string, first, n int) {
	t.Helper()
	anon, err := normalize.NewAnonymizer(testPseudonym.Algorithm)
	if err != nil {
		t.Fatal(err)
	}
	for i := first; i < first+n; i++ {
		st.AddIdentity(source, store.IdentityRow{
			Pseudonym:    anon.Pseudonym(root, strconv.Itoa(1000+i), testPseudonym.Salt),
			EncounterNum: int64(100 + i),
			PatientNum:   int64(500 + i),
		})
	}
}

func testConfig(t *testing.T, archive, runToken string) *config.Config {
	t.Helper()
	return &config.Config{
		ArchivePath:   archive,
		ScriptID:      "p21import",
		ScriptVersion: "1.5",
		RunToken:      runToken,
		ChunkSize:     7,
		WorkDir:       t.TempDir(),
	}
}

func markers(facts []model.Fact, encounterNum int64) []model.Fact {
	var out []model.Fact
	for _, f := range facts {
		if f.EncounterNum == encounterNum && f.ConceptCode == model.ScriptConcept && f.ModifierCode == model.ScriptIDModifier {
			out = append(out, f)
		}
	}
	return out
}

func TestRun_ImportAndReimport(t *testing.T) {
	ctx := context.Background()
	archive := writeArchive(t, 50, true)
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 40)

	cfg := testConfig(t, archive, "run-1")
	first, err := Run(ctx, st, zerolog.Nop(), cfg, testPseudonym, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.TotalRows != 50 || first.ValidRows != 47 || first.MatchedRows != 37 {
		t.Errorf("rows total/valid/matched = %d/%d/%d, want 50/47/37",
			first.TotalRows, first.ValidRows, first.MatchedRows)
	}
	if first.Strategy != "billing_id" {
		t.Errorf("strategy = %q, want billing_id", first.Strategy)
	}
	if first.NewEncounters != 37 || first.UpdatedEncounters != 0 {
		t.Errorf("new/updated = %d/%d, want 37/0", first.NewEncounters, first.UpdatedEncounters)
	}
	for _, kind := range model.AllKinds {
		if first.FactsByKind[kind] == 0 {
			t.Errorf("no facts uploaded for %s", kind)
		}
	}

	facts := st.Facts()
	if int64(len(facts)) != first.FactsUploaded {
		t.Errorf("store has %d facts, summary says %d", len(facts), first.FactsUploaded)
	}
	for i := 0; i < 40; i++ {
		m := markers(facts, int64(100+i))
		invalid := i >= 21 && i <= 23
		switch {
		case invalid && len(m) != 0:
			t.Errorf("invalid encounter %d was uploaded", 1000+i)
		case !invalid && len(m) != 1:
			t.Errorf("encounter %d has %d markers, want 1", 1000+i, len(m))
		case !invalid && m[0].Source != "p21import_run-1":
			t.Errorf("encounter %d marker source = %q", 1000+i, m[0].Source)
		}
	}
	if entries, _ := os.ReadDir(cfg.WorkDir); len(entries) != 0 {
		t.Errorf("workspace not removed: %d entries left", len(entries))
	}

	second, err := Run(ctx, st, zerolog.Nop(), testConfig(t, archive, "run-2"), testPseudonym, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.NewEncounters != 0 || second.UpdatedEncounters != 37 {
		t.Errorf("re-import new/updated = %d/%d, want 0/37", second.NewEncounters, second.UpdatedEncounters)
	}
	again := st.Facts()
	if len(again) != len(facts) {
		t.Errorf("re-import left %d facts, want %d", len(again), len(facts))
	}
	for _, f := range again {
		if f.Source != "p21import_run-2" {
			t.Fatalf("fact %s of encounter %d kept source %q", f.ConceptCode, f.EncounterNum, f.Source)
		}
	}
}

func TestRun_FallbackToEncounterID(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByEncounterID, testPseudonym.EncounterRoot, 0, 10)

	summary, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 10, false), "run-1"), testPseudonym, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Strategy != "encounter_id" || summary.MatchedRows != 10 {
		t.Errorf("strategy/matched = %s/%d, want encounter_id/10", summary.Strategy, summary.MatchedRows)
	}
}

func TestRun_SkipsMissingOptionalFiles(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 10)

	summary, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 10, false), "run-1"), testPseudonym, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.SkippedKinds) != 3 {
		t.Errorf("skipped = %v, want fab, icd and ops", summary.SkippedKinds)
	}
	if len(summary.FactsByKind) != 1 || summary.FactsByKind[model.KindEncounter] == 0 {
		t.Errorf("facts by kind = %v, want only fall.csv", summary.FactsByKind)
	}
}

func TestRun_NoMatchIsFatal(t *testing.T) {
	st := store.NewMemory()
	// Identities exist, but none of the archive.
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 100, 5)

	_, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 10, true), "run-1"), testPseudonym, nil)
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseMatch {
		t.Fatalf("err = %v, want match phase error", err)
	}
	if !errors.Is(err, match.ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
	if len(st.Facts()) != 0 {
		t.Errorf("facts written despite failed match")
	}
}

func TestRun_InsertFailureIsFatal(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 10)
	st.FailInsert = errors.New("disk full")

	_, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 10, true), "run-1"), testPseudonym, nil)
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseUpload {
		t.Fatalf("err = %v, want upload phase error", err)
	}
	var ue *UploadError
	if !errors.As(err, &ue) || ue.File != "fall.csv" || ue.Encounter != "1000" {
		t.Errorf("upload error = %+v, want fall.csv encounter 1000", ue)
	}
	if len(st.Facts()) != 0 {
		t.Errorf("facts committed despite failed insert")
	}
}

// insert commits facts directly, standing in for an earlier import.
func insert(t *testing.T, st *store.Memory, facts ...model.Fact) {
	t.Helper()
	ctx := context.Background()
	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.InsertFacts(ctx, facts); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
}

func earlierFact(encounterNum int64, concept, modifier, source string) model.Fact {
	return model.Fact{
		EncounterNum: encounterNum,
		PatientNum:   500,
		ConceptCode:  concept,
		ModifierCode: modifier,
		ProviderID:   model.ProviderID,
		Source:       source,
		StartDate:    model.Time(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestRun_ReplacesEarlierImport(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 5)
	insert(t, st,
		earlierFact(100, model.ScriptConcept, model.ScriptIDModifier, "p21import_old"),
		earlierFact(100, "ICD10GM:A00.0", model.NoValue, "p21import_old"),
		// Facts from other sources are never touched.
		earlierFact(100, "AKTIN:IKNR", model.NoValue, "CDA"),
		earlierFact(999, "ICD10GM:A00.0", model.NoValue, "p21import_old"),
	)

	summary, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 5, true), "new"), testPseudonym, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.UpdatedEncounters != 1 || summary.NewEncounters != 4 {
		t.Errorf("new/updated = %d/%d, want 4/1", summary.NewEncounters, summary.UpdatedEncounters)
	}
	for _, f := range st.FactsOf(100) {
		if f.Source == "p21import_old" {
			t.Errorf("earlier fact %s survived", f.ConceptCode)
		}
	}
	var cda, other int
	for _, f := range st.Facts() {
		if f.Source == "CDA" {
			cda++
		}
		if f.EncounterNum == 999 {
			other++
		}
	}
	if cda != 1 || other != 1 {
		t.Errorf("unrelated facts cda/other = %d/%d, want 1/1", cda, other)
	}
}

func TestRun_ProvenanceConflict(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 5)
	first := earlierFact(102, model.ScriptConcept, model.ScriptIDModifier, "p21import_a")
	second := earlierFact(102, model.ScriptConcept, model.ScriptIDModifier, "p21import_b")
	second.Instance = 2
	insert(t, st, first, second)

	_, err := Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, writeArchive(t, 5, true), "new"), testPseudonym, nil)
	if !errors.Is(err, ErrProvenanceConflict) {
		t.Fatalf("err = %v, want ErrProvenanceConflict", err)
	}
	var ue *UploadError
	if errors.As(err, &ue) && ue.Encounter != "1002" {
		t.Errorf("conflict reported for encounter %s, want 1002", ue.Encounter)
	}
	if got := len(st.FactsOf(102)); got != 2 {
		t.Errorf("encounter 102 has %d facts after rollback, want 2", got)
	}
}

func TestRun_MissingEncounterFile(t *testing.T) {
	exp, err := fixture.Generate(fixture.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	delete(exp.Files, "FALL.csv")
	path := filepath.Join(t.TempDir(), "p21.zip")
	if err := exp.WriteZip(path); err != nil {
		t.Fatal(err)
	}

	_, err = Run(context.Background(), store.NewMemory(), zerolog.Nop(),
		testConfig(t, path, "run-1"), testPseudonym, nil)
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseValidate {
		t.Fatalf("err = %v, want validate phase error", err)
	}
}

func TestRun_InvalidUTF8FailsValidation(t *testing.T) {
	exp, err := fixture.Generate(fixture.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	fall := exp.Files["FALL.csv"]
	nl := bytes.IndexByte(fall, '\n')
	corrupt := append(append(append([]byte{}, fall[:nl+1]...), 0xff), fall[nl+1:]...)
	exp.Files["FALL.csv"] = corrupt
	path := filepath.Join(t.TempDir(), "p21.zip")
	if err := exp.WriteZip(path); err != nil {
		t.Fatal(err)
	}

	st := store.NewMemory()
	_, err = Run(context.Background(), st, zerolog.Nop(),
		testConfig(t, path, "run-1"), testPseudonym, nil)
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseValidate {
		t.Fatalf("err = %v, want validate phase error", err)
	}
	if !errors.Is(err, csvread.ErrInvalidUTF8) {
		t.Errorf("err = %v, want invalid UTF-8", err)
	}
	if n := len(st.Facts()); n != 0 {
		t.Errorf("%d facts written after failed validation", n)
	}
}

func TestRun_WritesMetrics(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.ByBillingID, testPseudonym.BillingRoot, 0, 10)
	cfg := testConfig(t, writeArchive(t, 10, true), "run-1")
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "p21import.prom")

	if _, err := Run(context.Background(), st, zerolog.Nop(), cfg, testPseudonym, metrics.New()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(cfg.MetricsTextfile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "p21import_encounters_matched 10") {
		t.Errorf("metrics textfile lacks matched gauge:\n%s", data)
	}
}

func TestPlan_ExportsFacts(t *testing.T) {
	cfg := testConfig(t, writeArchive(t, 30, true), "dry")
	cfg.FactsOut = filepath.Join(t.TempDir(), "facts.parquet")

	report, err := Plan(context.Background(), zerolog.Nop(), cfg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if report.TotalRows != 30 || report.ValidEncounters != 27 {
		t.Errorf("total/valid = %d/%d, want 30/27", report.TotalRows, report.ValidEncounters)
	}
	if len(report.SHA256) != 64 {
		t.Errorf("sha256 = %q", report.SHA256)
	}
	var facts int64
	for _, f := range report.Files {
		if !f.Present {
			t.Errorf("%s reported absent", f.Kind)
		}
		facts += f.Facts
	}
	if facts == 0 || facts != report.FactsExported {
		t.Errorf("facts = %d, exported = %d", facts, report.FactsExported)
	}

	rows, err := factexport.ReadAll(cfg.FactsOut)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if int64(len(rows)) != report.FactsExported {
		t.Errorf("export has %d rows, want %d", len(rows), report.FactsExported)
	}
	for _, r := range rows {
		if r.SourceID == "1021" || r.SourceID == "1022" || r.SourceID == "1023" {
			t.Fatalf("invalid encounter %s exported", r.SourceID)
		}
	}
}
