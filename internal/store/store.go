// Package store is the fact store the importer reads identities from and
// writes observation facts to.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aktin/p21import/internal/model"
)

// ErrNoRows is returned when an identity query yields no rows at all. The
// matcher treats it as "try the next strategy"; every other error is fatal.
var ErrNoRows = errors.New("no rows returned by store query")

// IdentitySource selects where consented identities are looked up.
type IdentitySource int

const (
	// ByBillingID reads pseudonymized billing ids stored as facts.
	ByBillingID IdentitySource = iota
	// ByEncounterID reads pseudonymized encounter ids from encounter_mapping.
	ByEncounterID
)

func (s IdentitySource) String() string {
	switch s {
	case ByBillingID:
		return "billing_id"
	case ByEncounterID:
		return "encounter_id"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// IdentityRow is one consented encounter as stored: the pseudonym it is
// indexed under and its internal numbers.
type IdentityRow struct {
	Pseudonym    string
	EncounterNum int64
	PatientNum   int64
}

// Store is the fact store.
type Store interface {
	// Identities streams every consented identity of source to fn. It
	// returns ErrNoRows when the query produced nothing.
	Identities(ctx context.Context, source IdentitySource, fn func(IdentityRow) error) error
	// Begin starts a transaction for one chunk of facts.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a unit of work on the fact table.
type Tx interface {
	// ScriptSources returns the provenance tags of the importer marker facts
	// of an encounter.
	ScriptSources(ctx context.Context, encounterNum int64) ([]string, error)
	// DeleteFacts removes every fact of an encounter written by source.
	DeleteFacts(ctx context.Context, encounterNum int64, source string) (int64, error)
	// InsertFacts writes facts and returns the number of rows inserted.
	InsertFacts(ctx context.Context, facts []model.Fact) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
