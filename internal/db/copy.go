package db

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/aktin/p21import/internal/model"
)

// FactSource implements pgx.CopyFromSource over a slice of enriched facts.
type FactSource struct {
	facts []model.Fact
	idx   int
	err   error
}

// NewFactSource creates a CopyFromSource for facts.
func NewFactSource(facts []model.Fact) *FactSource {
	return &FactSource{facts: facts, idx: -1}
}

// Next advances to the next fact.
func (s *FactSource) Next() bool {
	if s.err != nil {
		return false
	}
	s.idx++
	return s.idx < len(s.facts)
}

// Values returns the current fact in model.FactColumns order.
func (s *FactSource) Values() ([]any, error) {
	f := &s.facts[s.idx]
	num, err := numeric(f.NumValue)
	if err != nil {
		s.err = fmt.Errorf("fact %s/%s of encounter %d: %w", f.ConceptCode, f.ModifierCode, f.EncounterNum, err)
		return nil, s.err
	}
	return []any{
		f.EncounterNum,
		f.PatientNum,
		f.ConceptCode,
		f.ProviderID,
		timestamp(f.StartDate),
		f.ModifierCode,
		f.Instance,
		f.ValueType,
		text(f.TextValue),
		num,
		text(f.ValueFlag),
		text(f.Units),
		timestamp(f.EndDate),
		f.LocationCode,
		f.Source,
		f.ImportDate,
		f.UpdateDate,
		f.DownloadDate,
	}, nil
}

// Err returns the first conversion error, if any.
func (s *FactSource) Err() error {
	return s.err
}

func numeric(v *string) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if v == nil {
		return n, nil
	}
	if err := n.Scan(*v); err != nil {
		return n, fmt.Errorf("numeric value %q: %w", *v, err)
	}
	return n, nil
}

func text(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}

func timestamp(v *time.Time) pgtype.Timestamp {
	if v == nil {
		return pgtype.Timestamp{}
	}
	return pgtype.Timestamp{Time: *v, Valid: true}
}

// Compile-time check that FactSource satisfies the interface.
var _ pgx.CopyFromSource = (*FactSource)(nil)
