package model

import "time"

// Fixed i2b2 vocabulary used by the importer.
const (
	ProviderID        = "P21"
	NoValue           = "@"
	ScriptConcept     = "P21:SCRIPT"
	ScriptIDModifier  = "scriptId"
	ScriptVerModifier = "scriptVer"
	BillingIDConcept  = "AKTIN:Fallkennzeichen"
	OptOutStudy       = "AKTIN"
)

// Value types of an observation fact.
const (
	ValueNone    = "@"
	ValueText    = "T"
	ValueNumeric = "N"
)

// Fact is one i2b2 observation_fact row.
// Pointer fields are nil when the column should be NULL.
type Fact struct {
	EncounterNum int64
	PatientNum   int64
	ConceptCode  string
	ProviderID   string
	StartDate    *time.Time
	ModifierCode string
	Instance     int // 0 until enrichment sets the default of 1
	ValueType    string
	TextValue    *string
	NumValue     *string // decimal literal with a dot separator
	ValueFlag    *string
	Units        *string
	EndDate      *time.Time
	LocationCode string
	Source       string
	ImportDate   time.Time
	UpdateDate   time.Time
	DownloadDate time.Time
}

// FactColumns returns the ordered column names for COPY into observation_fact.
func FactColumns() []string {
	return []string{
		"encounter_num",
		"patient_num",
		"concept_cd",
		"provider_id",
		"start_date",
		"modifier_cd",
		"instance_num",
		"valtype_cd",
		"tval_char",
		"nval_num",
		"valueflag_cd",
		"units_cd",
		"end_date",
		"location_cd",
		"sourcesystem_cd",
		"import_date",
		"update_date",
		"download_date",
	}
}

// Str returns a pointer to s, for the optional text columns of a Fact.
func Str(s string) *string {
	return &s
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}

// SourceTag builds the provenance value written to sourcesystem_cd.
func SourceTag(scriptID, runToken string) string {
	return scriptID + "_" + runToken
}
