package ingest

import (
	"fmt"

	"github.com/aktin/p21import/internal/convert"
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/verify"
)

// chunk is the converted and enriched content of one chunk of records.
type chunk struct {
	facts      []model.Fact
	encounters []model.Identity // unique, in file order
	matched    int64
	dropped    int64
	// perRecord holds the facts of each converted record, for exports that
	// keep the source id next to the fact.
	perRecord []recordFacts
}

type recordFacts struct {
	id    model.Identity
	facts []model.Fact
}

// builder turns raw chunks of one file pass into facts. It owns the
// converter, so its instance numbering spans the whole file.
type builder struct {
	kind     model.FileKind
	conv     convert.Converter
	stamp    convert.Stamp
	mapping  model.Mapping
	verifier *verify.Verifier
}

func newBuilder(kind model.FileKind, meta convert.Meta, stamp convert.Stamp, mapping model.Mapping, v *verify.Verifier) (*builder, error) {
	conv, err := convert.New(kind, meta)
	if err != nil {
		return nil, err
	}
	return &builder{kind: kind, conv: conv, stamp: stamp, mapping: mapping, verifier: v}, nil
}

// build keeps the records of mapped encounters, validates and converts
// them. Within one chunk of fall.csv a repeated encounter keeps its last
// record only.
func (b *builder) build(rows []model.Row) (*chunk, error) {
	matched := rows[:0]
	for _, row := range rows {
		if _, ok := b.mapping[row.Get(model.IDColumn)]; ok {
			matched = append(matched, row)
		}
	}
	c := &chunk{matched: int64(len(matched))}
	if len(matched) == 0 {
		return c, nil
	}

	valid := b.verifier.CleanAll(matched)
	c.dropped = c.matched - int64(len(valid))
	if b.kind == model.KindEncounter {
		valid = lastPerEncounter(valid)
	}

	index := make(map[string]struct{})
	for _, row := range valid {
		sourceID := row.Get(model.IDColumn)
		id := b.mapping[sourceID]
		facts, err := b.conv.Convert(row)
		if err != nil {
			return nil, fmt.Errorf("convert %s record of encounter %s: %w", b.kind, sourceID, err)
		}
		if enc, ok := b.conv.(*convert.EncounterConverter); ok {
			facts = append(facts, enc.ScriptFacts()...)
		}
		convert.EnrichAll(facts, id, b.stamp)

		if _, ok := index[sourceID]; !ok {
			index[sourceID] = struct{}{}
			c.encounters = append(c.encounters, id)
		}
		c.facts = append(c.facts, facts...)
		c.perRecord = append(c.perRecord, recordFacts{id: id, facts: facts})
	}
	return c, nil
}

func lastPerEncounter(rows []model.Row) []model.Row {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[row.Get(model.IDColumn)] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([]model.Row, 0, len(last))
	for i, row := range rows {
		if last[row.Get(model.IDColumn)] == i {
			out = append(out, row)
		}
	}
	return out
}
