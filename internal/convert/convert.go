// Package convert turns validated P21 records into i2b2 observation facts.
package convert

import (
	"fmt"
	"time"

	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// Modifier codes shared by the converters.
const (
	modDiagType     = "diagType"
	modVersion      = "cdVersion"
	modLocalisation = "localisation"
	modCertainty    = "certainty"
	modSecondary    = "sdFrom"
	modEffective    = "effectiveTime"
)

// Meta identifies the importer that writes the facts.
type Meta struct {
	ScriptID      string
	ScriptVersion string
}

// Converter builds the facts of one record of a P21 file.
type Converter interface {
	Kind() model.FileKind
	Convert(row model.Row) ([]model.Fact, error)
}

// New returns the converter for kind. Converters of repeating files keep
// their own InstanceTracker, so a fresh converter is needed per file pass.
func New(kind model.FileKind, meta Meta) (Converter, error) {
	switch kind {
	case model.KindEncounter:
		return &EncounterConverter{meta: meta}, nil
	case model.KindDepartment:
		return &DepartmentConverter{instances: NewInstanceTracker()}, nil
	case model.KindDiagnosis:
		return &DiagnosisConverter{instances: NewInstanceTracker()}, nil
	case model.KindProcedure:
		return &ProcedureConverter{instances: NewInstanceTracker()}, nil
	}
	return nil, fmt.Errorf("no converter for %s", kind)
}

// presence is a fact that only records that concept occurred.
func presence(concept string) model.Fact {
	return model.Fact{
		ConceptCode:  concept,
		ModifierCode: model.NoValue,
		ValueType:    model.ValueNone,
		ValueFlag:    model.Str(model.NoValue),
	}
}

func text(concept, modifier, value string) model.Fact {
	return model.Fact{
		ConceptCode:  concept,
		ModifierCode: modifier,
		ValueType:    model.ValueText,
		TextValue:    model.Str(value),
	}
}

func numeric(concept, modifier, value, units string) model.Fact {
	return model.Fact{
		ConceptCode:  concept,
		ModifierCode: modifier,
		ValueType:    model.ValueNumeric,
		NumValue:     model.Str(value),
		Units:        model.Str(units),
	}
}

func concept(prefix, code string) string {
	return prefix + ":" + code
}

func factDate(column, raw string) (time.Time, error) {
	t, err := normalize.FactDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", column, err)
	}
	return t, nil
}

func dayDate(column, raw string) (time.Time, error) {
	t, err := normalize.DayDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", column, err)
	}
	return t, nil
}

func withInstance(facts []model.Fact, instance int) []model.Fact {
	for i := range facts {
		facts[i].Instance = instance
	}
	return facts
}
