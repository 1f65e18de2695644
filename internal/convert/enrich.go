package convert

import (
	"time"

	"github.com/aktin/p21import/internal/model"
)

// Stamp carries the values every fact of one run shares.
type Stamp struct {
	ProviderID string
	Source     string
	Now        time.Time
}

// NewStamp returns the stamp of a run with the given provenance tag.
func NewStamp(source string, now time.Time) Stamp {
	return Stamp{ProviderID: model.ProviderID, Source: source, Now: now}
}

// Enrich fills identity, provenance and default columns of f. Values the
// converter already set are kept.
func Enrich(f *model.Fact, id model.Identity, s Stamp) {
	f.EncounterNum = id.EncounterNum
	f.PatientNum = id.PatientNum
	f.ProviderID = s.ProviderID
	f.LocationCode = model.NoValue
	f.Source = s.Source
	f.ImportDate = s.Now
	f.UpdateDate = s.Now
	f.DownloadDate = s.Now

	if f.Instance == 0 {
		f.Instance = 1
	}
	if f.StartDate == nil {
		f.StartDate = model.Time(id.Admission)
	}
	if f.ModifierCode == "" {
		f.ModifierCode = model.NoValue
	}
	if f.ValueType == "" {
		f.ValueType = model.ValueNone
	}
	if f.Units == nil {
		f.Units = model.Str(model.NoValue)
	}
}

// EnrichAll applies Enrich to every fact of facts.
func EnrichAll(facts []model.Fact, id model.Identity, s Stamp) {
	for i := range facts {
		Enrich(&facts[i], id, s)
	}
}
