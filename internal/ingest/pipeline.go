// Package ingest runs the import of a P21 export: extraction, validation,
// identity matching and the upload of observation facts.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/archive"
	"github.com/aktin/p21import/internal/config"
	"github.com/aktin/p21import/internal/convert"
	"github.com/aktin/p21import/internal/logging"
	"github.com/aktin/p21import/internal/match"
	"github.com/aktin/p21import/internal/metrics"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
	"github.com/aktin/p21import/internal/preprocess"
	"github.com/aktin/p21import/internal/store"
	"github.com/aktin/p21import/internal/verify"
)

// Pipeline phases, as reported by PipelineError.
const (
	PhaseExtract  = "extract"
	PhaseValidate = "validate"
	PhaseMatch    = "match"
	PhaseUpload   = "upload"
	PhaseReport   = "report"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// validated is the outcome of the validation phase.
type validated struct {
	present    []model.FileKind
	skipped    []model.FileKind
	totalRows  int64
	ids        map[string]struct{}
	admissions map[string]string
}

// Run executes the full import: extract → validate → match → upload
// (fall.csv first, then the optional files) → report. Nothing is written
// to the store unless the first three phases succeed. m may be nil.
func Run(ctx context.Context, st store.Store, log zerolog.Logger, cfg *config.Config, pseudo config.Pseudonym, m *metrics.Metrics) (*model.ImportSummary, error) {
	totalStart := time.Now()
	summary := &model.ImportSummary{
		ArchivePath:   cfg.ArchivePath,
		SourceTag:     model.SourceTag(cfg.ScriptID, cfg.RunToken),
		FactsByKind:   make(map[model.FileKind]int64),
		DroppedByKind: make(map[model.FileKind]int64),
	}

	// Phase 1: Extract
	log.Info().Str("archive", cfg.ArchivePath).Msg("extracting archive")
	ws, err := archive.Extract(cfg.ArchivePath, cfg.WorkDir)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseExtract, Err: err}
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			log.Warn().Err(err).Str("dir", ws.Dir).Msg("workspace cleanup failed")
		}
	}()

	// Phase 2: Validate
	start := time.Now()
	val, err := validate(ctx, ws, cfg.ChunkSize, log)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseValidate, Err: err}
	}
	summary.TotalRows = val.totalRows
	summary.ValidRows = int64(len(val.ids))
	summary.SkippedKinds = val.skipped
	summary.DurationValidate = time.Since(start)

	// Phase 3: Match
	start = time.Now()
	anon, err := normalize.NewAnonymizer(pseudo.Algorithm)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseMatch, Err: err}
	}
	matcher := match.New(st, anon, pseudo.Salt,
		match.DefaultStrategies(pseudo.BillingRoot, pseudo.EncounterRoot), log)
	mapping, strategy, err := matcher.Match(ctx, val.ids, val.admissions)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseMatch, Err: err}
	}
	summary.Strategy = strategy.Name
	summary.MatchedRows = int64(len(mapping))
	summary.DurationMatch = time.Since(start)

	// Phase 4: Upload
	start = time.Now()
	stamp := convert.NewStamp(summary.SourceTag, time.Now())
	meta := convert.Meta{ScriptID: cfg.ScriptID, ScriptVersion: cfg.ScriptVersion}
	up := NewUploader(st, ws.Dir, meta, stamp, cfg.ChunkSize, log)
	for _, kind := range val.present {
		res, err := up.Upload(ctx, kind, mapping)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseUpload, Err: err}
		}
		summary.FactsByKind[kind] = res.Facts
		summary.DroppedByKind[kind] = res.Dropped
		summary.FactsUploaded += res.Facts
		summary.NewEncounters += res.NewEncounters
		summary.UpdatedEncounters += res.UpdatedEncounters
	}
	summary.DurationUpload = time.Since(start)
	summary.DurationTotal = time.Since(totalStart)

	// Phase 5: Report
	if m != nil {
		m.Observe(summary)
		if cfg.MetricsTextfile != "" {
			if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
				return summary, &PipelineError{Phase: PhaseReport, Err: err}
			}
		}
	}

	log.Info().
		Str("strategy", summary.Strategy).
		Int64("total", summary.TotalRows).
		Int64("valid", summary.ValidRows).
		Int64("matched", summary.MatchedRows).
		Int64("uploaded", summary.Uploaded()).
		Int64("new", summary.NewEncounters).
		Int64("updated", summary.UpdatedEncounters).
		Int64("facts", summary.FactsUploaded).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("import complete")

	return summary, nil
}

// validate normalizes the extracted files and checks their structure. It
// returns the valid encounter identifiers of fall.csv with their admission
// dates. Optional files that are absent are reported as skipped.
func validate(ctx context.Context, ws *archive.Workspace, chunkSize int, log zerolog.Logger) (*validated, error) {
	val := &validated{}
	for _, kind := range model.AllKinds {
		klog := logging.ForKind(log, kind.FileName())
		v := verify.New(kind, ws.Dir, verify.Options{ChunkSize: chunkSize, Log: klog})
		ok, err := v.IsPresent()
		if err != nil {
			return nil, err
		}
		if !ok {
			val.skipped = append(val.skipped, kind)
			continue
		}
		if _, err := preprocess.File(v.Path(), kind, klog); err != nil {
			return nil, err
		}
		if err := v.CheckColumns(); err != nil {
			return nil, err
		}
		val.present = append(val.present, kind)
		if kind != model.KindEncounter {
			continue
		}

		if val.totalRows, err = v.CountRows(ctx); err != nil {
			return nil, err
		}
		if val.ids, err = v.ValidIdentifiers(ctx); err != nil {
			return nil, err
		}
		if val.admissions, err = v.AdmissionDates(ctx); err != nil {
			return nil, err
		}
		klog.Info().
			Int64("rows", val.totalRows).
			Int("valid", len(val.ids)).
			Msg("encounters validated")
	}
	return val, nil
}
