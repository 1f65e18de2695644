package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aktin/p21import/internal/model"
)

// ErrTxDone is returned when a finished memory transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// Memory is an in-process Store. Transactions work on a copy of the fact
// table that replaces it on Commit. It backs the package tests.
type Memory struct {
	mu         sync.Mutex
	facts      []model.Fact
	identities map[IdentitySource][]IdentityRow

	// FailInsert, when set, is returned by every InsertFacts call.
	FailInsert error
	// FailIdentities maps a source to the error its query returns.
	FailIdentities map[IdentitySource]error
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{identities: make(map[IdentitySource][]IdentityRow)}
}

// AddIdentity registers a consented identity under source.
func (m *Memory) AddIdentity(source IdentitySource, row IdentityRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[source] = append(m.identities[source], row)
}

// Facts returns a copy of the committed facts.
func (m *Memory) Facts() []model.Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.facts)
}

// FactsOf returns the committed facts of one encounter.
func (m *Memory) FactsOf(encounterNum int64) []model.Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Fact
	for _, f := range m.facts {
		if f.EncounterNum == encounterNum {
			out = append(out, f)
		}
	}
	return out
}

func (m *Memory) Identities(ctx context.Context, source IdentitySource, fn func(IdentityRow) error) error {
	m.mu.Lock()
	failure := m.FailIdentities[source]
	rows := slices.Clone(m.identities[source])
	m.mu.Unlock()

	if failure != nil {
		return failure
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memTx{store: m, facts: slices.Clone(m.facts)}, nil
}

type memTx struct {
	store *Memory
	facts []model.Fact
	done  bool
}

func (t *memTx) ScriptSources(ctx context.Context, encounterNum int64) ([]string, error) {
	if t.done {
		return nil, ErrTxDone
	}
	var sources []string
	for _, f := range t.facts {
		if f.EncounterNum == encounterNum &&
			f.ConceptCode == model.ScriptConcept &&
			f.ModifierCode == model.ScriptIDModifier &&
			f.ProviderID == model.ProviderID {
			sources = append(sources, f.Source)
		}
	}
	return sources, nil
}

func (t *memTx) DeleteFacts(ctx context.Context, encounterNum int64, source string) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	before := len(t.facts)
	t.facts = slices.DeleteFunc(t.facts, func(f model.Fact) bool {
		return f.EncounterNum == encounterNum && f.Source == source
	})
	return int64(before - len(t.facts)), nil
}

func (t *memTx) InsertFacts(ctx context.Context, facts []model.Fact) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	if t.store.FailInsert != nil {
		return 0, t.store.FailInsert
	}
	t.facts = append(t.facts, facts...)
	return int64(len(facts)), nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.facts = t.facts
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
