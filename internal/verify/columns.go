package verify

import (
	"regexp"

	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// Column is the grammar and policy of one CSV column.
type Column struct {
	Name      string
	Pattern   *regexp.Regexp
	Mandatory bool
	Check     func(string) bool // optional semantic check after Pattern
}

// Valid reports whether a non-empty value satisfies the column grammar.
func (c Column) Valid(v string) bool {
	if !c.Pattern.MatchString(v) {
		return false
	}
	return c.Check == nil || c.Check(v)
}

// Spec lists the checked columns of one file kind in validation order.
type Spec struct {
	Kind    model.FileKind
	Columns []Column
}

// Names returns the column names of the spec.
func (s Spec) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func col(name, pattern string, mandatory bool) Column {
	return Column{Name: name, Pattern: regexp.MustCompile(pattern), Mandatory: mandatory}
}

func dateCol(name string, mandatory bool) Column {
	c := col(name, `^\d{12}$`, mandatory)
	c.Check = normalize.ValidFactDate
	return c
}

func dayCol(name string) Column {
	c := col(name, `^\d{8}$`, false)
	c.Check = normalize.ValidDayDate
	return c
}

const (
	patternAny       = `^.*$`
	patternLocation  = `^[BLR]$`
	patternCertainty = `^[AVZG]$`
	patternYesNo     = `^(J|N)$`
	patternDecimal   = `^\d*(,\d{2})?$`
	patternDays      = `^\d{0,4}$`
	patternVersion   = `^20\d{2}$`
	patternICD       = `^[A-Z]\d{2}(\.)?.{0,5}$`
)

var specs = map[model.FileKind]Spec{
	model.KindEncounter: {Kind: model.KindEncounter, Columns: []Column{
		col(model.IDColumn, patternAny, true),
		col("ikderkrankenkasse", `^\w*$`, false),
		col("geburtsjahr", `^(19|20)\d{2}$`, false),
		col("geschlecht", `^[mwdx]$`, false),
		col("plz", `^\d{5}$`, false),
		dateCol(model.AdmissionColumn, true),
		col("aufnahmegrund", `^(0[1-9]|10)\d{2}$`, true),
		col("aufnahmeanlass", `^[EZNRVAGB]$`, true),
		col("fallzusammenführung", patternYesNo, false),
		col("fallzusammenführungsgrund", `^(OG|MD|KO|RU|WR|MF|P[WRM]|Z[OMKRW])$`, false),
		col("verweildauerintensiv", patternDecimal, false),
		dateCol("entlassungsdatum", false),
		col("entlassungsgrund", `^\d{2}.{1}$`, false),
		col("beatmungsstunden", patternDecimal, false),
		dayCol("behandlungsbeginnvorstationär"),
		col("behandlungstagevorstationär", patternDays, false),
		dayCol("behandlungsendenachstationär"),
		col("behandlungstagenachstationär", patternDays, false),
	}},
	model.KindDepartment: {Kind: model.KindDepartment, Columns: []Column{
		col(model.IDColumn, patternAny, true),
		col("fachabteilung", `^(HA|BA|BE)\d{4}$`, true),
		dateCol("fabaufnahmedatum", true),
		dateCol("fabentlassungsdatum", false),
		col("kennungintensivbett", patternYesNo, true),
	}},
	model.KindDiagnosis: {Kind: model.KindDiagnosis, Columns: []Column{
		col(model.IDColumn, patternAny, true),
		col("diagnoseart", `^(HD|ND|SD)$`, true),
		col("icdversion", patternVersion, true),
		col("icdkode", patternICD, true),
		col("lokalisation", patternLocation, false),
		col("diagnosensicherheit", patternCertainty, false),
		col("sekundärkode", patternICD, false),
		col("sekundärlokalisation", patternLocation, false),
		col("sekundärdiagnosensicherheit", patternCertainty, false),
	}},
	model.KindProcedure: {Kind: model.KindProcedure, Columns: []Column{
		col(model.IDColumn, patternAny, true),
		col("opsversion", patternVersion, true),
		col("opskode", `^\d{1}(\-)?\d{2}(.{1})?(\.)?.{0,3}$`, true),
		dateCol("opsdatum", true),
		col("lokalisation", patternLocation, false),
	}},
}

// SpecFor returns the column grammar of kind.
func SpecFor(kind model.FileKind) Spec {
	return specs[kind]
}
