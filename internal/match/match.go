// Package match resolves raw P21 encounter identifiers to consented
// encounters of the data warehouse through their pseudonyms.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
	"github.com/aktin/p21import/internal/store"
)

// ErrNoMatch is returned when no valid encounter matches the store.
var ErrNoMatch = errors.New("no encounter could be matched with the database")

// Strategy is one way of finding encounters: the identity root hashed into
// the pseudonym and the store index it is looked up in.
type Strategy struct {
	Name   string
	Root   string
	Source store.IdentitySource
}

// DefaultStrategies returns billing id matching followed by encounter id
// matching, the order in which they are tried.
func DefaultStrategies(billingRoot, encounterRoot string) []Strategy {
	return []Strategy{
		{Name: "billing_id", Root: billingRoot, Source: store.ByBillingID},
		{Name: "encounter_id", Root: encounterRoot, Source: store.ByEncounterID},
	}
}

// Matcher pseudonymizes identifiers and joins them with the store.
type Matcher struct {
	store      store.Store
	anon       *normalize.Anonymizer
	salt       string
	strategies []Strategy
	log        zerolog.Logger
}

// New returns a Matcher trying strategies in order.
func New(st store.Store, anon *normalize.Anonymizer, salt string, strategies []Strategy, log zerolog.Logger) *Matcher {
	return &Matcher{store: st, anon: anon, salt: salt, strategies: strategies, log: log}
}

// Match maps every identifier of ids that the store knows to its encounter.
// Only a strategy whose query returns no rows at all passes on to the next
// one. The admission timestamp of each match comes from admissions; matches
// without one are dropped.
func (m *Matcher) Match(ctx context.Context, ids map[string]struct{}, admissions map[string]string) (model.Mapping, Strategy, error) {
	for _, s := range m.strategies {
		start := time.Now()
		mapping, err := m.matchWith(ctx, s, ids, admissions)
		if errors.Is(err, store.ErrNoRows) {
			m.log.Warn().Str("strategy", s.Name).Msg("store has no identities for strategy, trying next")
			continue
		}
		if err != nil {
			return nil, s, fmt.Errorf("match by %s: %w", s.Name, err)
		}
		if len(mapping) == 0 {
			return nil, s, fmt.Errorf("match by %s: %w", s.Name, ErrNoMatch)
		}
		m.log.Info().
			Str("strategy", s.Name).
			Int("valid", len(ids)).
			Int("matched", len(mapping)).
			Dur("duration", time.Since(start)).
			Msg("matching complete")
		return mapping, s, nil
	}
	return nil, Strategy{}, ErrNoMatch
}

func (m *Matcher) matchWith(ctx context.Context, s Strategy, ids map[string]struct{}, admissions map[string]string) (model.Mapping, error) {
	byPseudonym := make(map[string]string, len(ids))
	for id := range ids {
		byPseudonym[m.anon.Pseudonym(s.Root, id, m.salt)] = id
	}

	mapping := make(model.Mapping)
	err := m.store.Identities(ctx, s.Source, func(row store.IdentityRow) error {
		id, ok := byPseudonym[row.Pseudonym]
		if !ok {
			return nil
		}
		if _, dup := mapping[id]; dup {
			return nil
		}
		raw, ok := admissions[id]
		if !ok {
			return nil
		}
		admission, err := normalize.FactDate(raw)
		if err != nil {
			return fmt.Errorf("admission of encounter %s: %w", id, err)
		}
		mapping[id] = model.Identity{
			SourceID:     id,
			EncounterNum: row.EncounterNum,
			PatientNum:   row.PatientNum,
			Admission:    admission,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}
