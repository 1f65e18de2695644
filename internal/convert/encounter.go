package convert

import (
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// Encounter concepts written from fall.csv.
const (
	conceptAdmissionCause  = "P21:ADMC"
	conceptAdmissionReason = "P21:ADMR"
	conceptInsurance       = "AKTIN:IKNR"
	conceptBirthYear       = "LOINC:80904-6"
	conceptSex             = "P21:SEX"
	conceptZipCode         = "AKTIN:ZIPCODE"
	conceptMerge           = "P21:MERGE"
	conceptCriticalCare    = "P21:DCC"
	conceptDischarge       = "P21:DISR"
	conceptVentilation     = "P21:DV"
	conceptPreAdmission    = "P21:PREADM"
	conceptPostDischarge   = "P21:POSTDIS"
)

// mergeFlag is the value of fallzusammenführung that marks a merged case.
const mergeFlag = "J"

// EncounterConverter converts fall.csv. Each encounter has exactly one
// record, so no instance numbers are assigned.
type EncounterConverter struct {
	meta Meta
}

func (c *EncounterConverter) Kind() model.FileKind { return model.KindEncounter }

// Convert always emits the admission cause and reason. Every other fact
// needs its column (or column pair) to be filled.
func (c *EncounterConverter) Convert(row model.Row) ([]model.Fact, error) {
	facts := []model.Fact{
		presence(concept(conceptAdmissionCause, normalize.UpperCode(row.Get("aufnahmeanlass")))),
		presence(concept(conceptAdmissionReason, normalize.UpperCode(row.Get("aufnahmegrund")))),
	}
	if row.Has("ikderkrankenkasse") {
		facts = append(facts, text(conceptInsurance, model.NoValue, row.Get("ikderkrankenkasse")))
	}
	if row.Has("geburtsjahr") {
		facts = append(facts,
			numeric(conceptBirthYear, model.NoValue, row.Get("geburtsjahr"), "yyyy"),
			text(conceptBirthYear, modEffective, row.Get(model.AdmissionColumn)),
		)
	}
	if row.Has("geschlecht") {
		facts = append(facts, presence(concept(conceptSex, normalize.UpperCode(row.Get("geschlecht")))))
	}
	if row.Has("plz") {
		facts = append(facts, text(conceptZipCode, model.NoValue, row.Get("plz")))
	}
	if row.Get("fallzusammenführung") == mergeFlag && row.Has("fallzusammenführungsgrund") {
		facts = append(facts, presence(concept(conceptMerge, normalize.UpperCode(row.Get("fallzusammenführungsgrund")))))
	}
	if row.Has("verweildauerintensiv") {
		facts = append(facts, numeric(conceptCriticalCare, model.NoValue, normalize.Decimal(row.Get("verweildauerintensiv")), "d"))
	}
	if row.Has("entlassungsdatum") && row.Has("entlassungsgrund") {
		discharge, err := factDate("entlassungsdatum", row.Get("entlassungsdatum"))
		if err != nil {
			return nil, err
		}
		f := presence(concept(conceptDischarge, normalize.UpperCode(row.Get("entlassungsgrund"))))
		f.StartDate = model.Time(discharge)
		facts = append(facts, f)
	}
	if row.Has("beatmungsstunden") {
		facts = append(facts, numeric(conceptVentilation, model.NoValue, normalize.Decimal(row.Get("beatmungsstunden")), "h"))
	}
	if row.Has("behandlungsbeginnvorstationär") {
		f, err := dayWithCount(conceptPreAdmission, "behandlungsbeginnvorstationär", row.Get("behandlungsbeginnvorstationär"), row.Get("behandlungstagevorstationär"))
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if row.Has("behandlungsendenachstationär") {
		f, err := dayWithCount(conceptPostDischarge, "behandlungsendenachstationär", row.Get("behandlungsendenachstationär"), row.Get("behandlungstagenachstationär"))
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// dayWithCount builds a fact dated at midnight of day. With a day count the
// fact is numeric, otherwise it only marks presence.
func dayWithCount(code, column, day, count string) (model.Fact, error) {
	start, err := dayDate(column, day)
	if err != nil {
		return model.Fact{}, err
	}
	var f model.Fact
	if count != "" {
		f = numeric(code, model.NoValue, count, "d")
	} else {
		f = presence(code)
	}
	f.StartDate = model.Time(start)
	return f, nil
}

// ScriptFacts returns the marker facts identifying the importer. They are
// attached to every encounter and looked up on re-import.
func (c *EncounterConverter) ScriptFacts() []model.Fact {
	return []model.Fact{
		presence(model.ScriptConcept),
		text(model.ScriptConcept, model.ScriptVerModifier, c.meta.ScriptVersion),
		text(model.ScriptConcept, model.ScriptIDModifier, c.meta.ScriptID),
	}
}
