package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aktin/p21import/internal/db"
	"github.com/aktin/p21import/internal/model"
	embedsql "github.com/aktin/p21import/internal/sql"
)

// PG is the i2b2 fact store on PostgreSQL.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG wraps pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// Identities runs the identity query of source and streams its rows. pgx
// reads rows from the wire as they are scanned, so the result is never held
// in memory as a whole.
func (s *PG) Identities(ctx context.Context, source IdentitySource, fn func(IdentityRow) error) error {
	var (
		rows pgx.Rows
		err  error
	)
	switch source {
	case ByBillingID:
		rows, err = s.pool.Query(ctx, embedsql.IdentitiesByBillingID, model.OptOutStudy, model.BillingIDConcept)
	case ByEncounterID:
		rows, err = s.pool.Query(ctx, embedsql.IdentitiesByEncounterID, model.OptOutStudy)
	default:
		return fmt.Errorf("unknown identity source %s", source)
	}
	if err != nil {
		return fmt.Errorf("query identities by %s: %w", source, err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var (
			pseudonym *string
			row       IdentityRow
		)
		if err := rows.Scan(&pseudonym, &row.EncounterNum, &row.PatientNum); err != nil {
			return fmt.Errorf("scan identity: %w", err)
		}
		n++
		if pseudonym == nil {
			continue
		}
		row.Pseudonym = *pseudonym
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read identities by %s: %w", source, err)
	}
	if n == 0 {
		return fmt.Errorf("identities by %s: %w", source, ErrNoRows)
	}
	return nil
}

// Begin starts a transaction.
func (s *PG) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ScriptSources(ctx context.Context, encounterNum int64) ([]string, error) {
	rows, err := t.tx.Query(ctx, embedsql.ScriptSources,
		encounterNum, model.ScriptConcept, model.ScriptIDModifier, model.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("query script sources of encounter %d: %w", encounterNum, err)
	}
	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var src *string
		err := row.Scan(&src)
		if src == nil {
			return "", err
		}
		return *src, err
	})
	if err != nil {
		return nil, fmt.Errorf("read script sources of encounter %d: %w", encounterNum, err)
	}
	return sources, nil
}

func (t *pgTx) DeleteFacts(ctx context.Context, encounterNum int64, source string) (int64, error) {
	tag, err := t.tx.Exec(ctx, embedsql.DeleteEncounterFacts, encounterNum, source)
	if err != nil {
		return 0, fmt.Errorf("delete facts of encounter %d: %w", encounterNum, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertFacts(ctx context.Context, facts []model.Fact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"observation_fact"},
		model.FactColumns(),
		db.NewFactSource(facts),
	)
	if err != nil {
		return n, fmt.Errorf("copy facts: %w", err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op after Commit.
func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
