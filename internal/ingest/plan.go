package ingest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/archive"
	"github.com/aktin/p21import/internal/config"
	"github.com/aktin/p21import/internal/convert"
	"github.com/aktin/p21import/internal/factexport"
	"github.com/aktin/p21import/internal/logging"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
	"github.com/aktin/p21import/internal/verify"
)

// PlanFile holds the dry-run counts of one file.
type PlanFile struct {
	Kind    model.FileKind
	Present bool
	Rows    int64 // records of valid encounters
	Dropped int64
	Facts   int64
}

// PlanReport is the outcome of a dry run.
type PlanReport struct {
	ArchivePath     string
	SHA256          string
	TotalRows       int64
	ValidEncounters int
	Files           []PlanFile
	FactsExported   int64
}

// Plan validates and converts an archive without a fact store. Every valid
// encounter is treated as matched, with encounter and patient number 0. When
// cfg.FactsOut is set the converted facts are written there as Parquet.
func Plan(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*PlanReport, error) {
	sha, err := normalize.FileHash(cfg.ArchivePath)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseExtract, Err: err}
	}
	ws, err := archive.Extract(cfg.ArchivePath, cfg.WorkDir)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseExtract, Err: err}
	}
	defer ws.Remove()

	val, err := validate(ctx, ws, cfg.ChunkSize, log)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseValidate, Err: err}
	}
	mapping, err := unmatched(val)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseValidate, Err: err}
	}

	report := &PlanReport{
		ArchivePath:     cfg.ArchivePath,
		SHA256:          sha,
		TotalRows:       val.totalRows,
		ValidEncounters: len(val.ids),
	}

	var out *factexport.Writer
	if cfg.FactsOut != "" {
		if out, err = factexport.Create(cfg.FactsOut); err != nil {
			return nil, &PipelineError{Phase: PhaseReport, Err: err}
		}
	}
	closeOut := func() error {
		if out == nil {
			return nil
		}
		w := out
		out = nil
		return w.Close()
	}
	defer closeOut()

	scriptID := cfg.ScriptID
	if scriptID == "" {
		scriptID = "plan"
	}
	stamp := convert.NewStamp(model.SourceTag(scriptID, cfg.RunToken), time.Now())
	meta := convert.Meta{ScriptID: scriptID, ScriptVersion: cfg.ScriptVersion}

	for _, kind := range model.AllKinds {
		pf := PlanFile{Kind: kind, Present: slices.Contains(val.present, kind)}
		if pf.Present {
			if err := planFile(ctx, ws.Dir, cfg.ChunkSize, kind, meta, stamp, mapping, out, &pf, log); err != nil {
				return nil, &PipelineError{Phase: PhaseValidate, Err: err}
			}
		}
		report.Files = append(report.Files, pf)
	}

	if out != nil {
		report.FactsExported = out.Count()
		if err := closeOut(); err != nil {
			return nil, &PipelineError{Phase: PhaseReport, Err: err}
		}
		log.Info().
			Str("path", cfg.FactsOut).
			Int64("facts", report.FactsExported).
			Msg("facts exported")
	}
	return report, nil
}

func planFile(ctx context.Context, folder string, chunkSize int, kind model.FileKind, meta convert.Meta, stamp convert.Stamp, mapping model.Mapping, out *factexport.Writer, pf *PlanFile, log zerolog.Logger) error {
	v := verify.New(kind, folder, verify.Options{ChunkSize: chunkSize, Log: logging.ForKind(log, kind.FileName())})
	b, err := newBuilder(kind, meta, stamp, mapping, v)
	if err != nil {
		return err
	}
	return v.Stream(ctx, func(rows []model.Row) error {
		c, err := b.build(rows)
		if err != nil {
			return err
		}
		pf.Rows += c.matched
		pf.Dropped += c.dropped
		pf.Facts += int64(len(c.facts))
		if out == nil {
			return nil
		}
		for _, rec := range c.perRecord {
			if err := out.WriteFacts(rec.id.SourceID, kind, rec.facts); err != nil {
				return err
			}
		}
		return nil
	})
}

// unmatched maps every valid encounter to a placeholder identity.
func unmatched(val *validated) (model.Mapping, error) {
	mapping := make(model.Mapping, len(val.ids))
	for id := range val.ids {
		raw, ok := val.admissions[id]
		if !ok {
			continue
		}
		admission, err := normalize.FactDate(raw)
		if err != nil {
			return nil, fmt.Errorf("admission of encounter %s: %w", id, err)
		}
		mapping[id] = model.Identity{SourceID: id, Admission: admission}
	}
	return mapping, nil
}
