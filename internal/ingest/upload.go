package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/convert"
	"github.com/aktin/p21import/internal/logging"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/store"
	"github.com/aktin/p21import/internal/verify"
)

// UploadError names the file and encounter an upload failed on.
type UploadError struct {
	File      string
	Encounter string
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s (encounter %s): %s", e.File, e.Encounter, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UploadResult holds the counts of one file upload.
type UploadResult struct {
	Kind              model.FileKind
	Rows              int64 // matched records read
	Dropped           int64 // matched records dropped by validation
	Facts             int64
	NewEncounters     int64
	UpdatedEncounters int64
	Duration          time.Duration
}

// Uploader writes the facts of matched records to the store, one
// transaction per chunk.
type Uploader struct {
	store     store.Store
	folder    string
	meta      convert.Meta
	stamp     convert.Stamp
	chunkSize int
	log       zerolog.Logger
}

// NewUploader returns an Uploader for the extracted files in folder.
func NewUploader(st store.Store, folder string, meta convert.Meta, stamp convert.Stamp, chunkSize int, log zerolog.Logger) *Uploader {
	return &Uploader{
		store:     st,
		folder:    folder,
		meta:      meta,
		stamp:     stamp,
		chunkSize: chunkSize,
		log:       log,
	}
}

// Upload converts and stores every matched record of the file of kind. For
// fall.csv each encounter is reconciled with earlier imports in the same
// transaction that inserts its new facts.
func (u *Uploader) Upload(ctx context.Context, kind model.FileKind, mapping model.Mapping) (*UploadResult, error) {
	start := time.Now()
	log := logging.ForKind(u.log, kind.FileName())
	v := verify.New(kind, u.folder, verify.Options{ChunkSize: u.chunkSize, Log: log})
	b, err := newBuilder(kind, u.meta, u.stamp, mapping, v)
	if err != nil {
		return nil, err
	}

	res := &UploadResult{Kind: kind}
	seen := make(map[int64]struct{})
	err = v.Stream(ctx, func(rows []model.Row) error {
		c, err := b.build(rows)
		if err != nil {
			return err
		}
		res.Rows += c.matched
		res.Dropped += c.dropped
		if len(c.facts) == 0 {
			return nil
		}
		n, err := u.write(ctx, kind, c, seen, res)
		if err != nil {
			return err
		}
		res.Facts += n
		log.Debug().
			Int64("facts", n).
			Int("encounters", len(c.encounters)).
			Msg("chunk uploaded")
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	log.Info().
		Int64("rows", res.Rows).
		Int64("dropped", res.Dropped).
		Int64("facts", res.Facts).
		Dur("duration", res.Duration).
		Msg("file uploaded")
	return res, nil
}

// write reconciles and inserts one chunk in a single transaction.
func (u *Uploader) write(ctx context.Context, kind model.FileKind, c *chunk, seen map[int64]struct{}, res *UploadResult) (int64, error) {
	fail := func(encounter string, err error) error {
		return &UploadError{File: kind.FileName(), Encounter: encounter, Err: err}
	}

	tx, err := u.store.Begin(ctx)
	if err != nil {
		return 0, fail(c.encounters[0].SourceID, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	var newEnc, updated int64
	if kind == model.KindEncounter {
		for _, id := range c.encounters {
			wasImported, deleted, err := reconcile(ctx, tx, id.EncounterNum)
			if err != nil {
				return 0, fail(id.SourceID, err)
			}
			if _, dup := seen[id.EncounterNum]; dup {
				continue
			}
			if wasImported {
				updated++
				u.log.Debug().
					Str("encounter", id.SourceID).
					Int64("deleted", deleted).
					Msg("replacing earlier import")
			} else {
				newEnc++
			}
		}
	}

	n, err := tx.InsertFacts(ctx, c.facts)
	if err != nil {
		return 0, fail(c.encounters[0].SourceID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fail(c.encounters[0].SourceID, fmt.Errorf("commit: %w", err))
	}

	for _, id := range c.encounters {
		seen[id.EncounterNum] = struct{}{}
	}
	res.NewEncounters += newEnc
	res.UpdatedEncounters += updated
	return n, nil
}
