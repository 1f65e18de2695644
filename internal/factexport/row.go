package factexport

import (
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

// Row is the Parquet schema of an exported fact: the converted fact plus
// the raw encounter id it came from. Dates use the fact date text layout.
type Row struct {
	SourceID     string  `parquet:"source_id"`
	File         string  `parquet:"file"`
	ConceptCode  string  `parquet:"concept_cd"`
	ModifierCode string  `parquet:"modifier_cd"`
	Instance     int32   `parquet:"instance_num"`
	ValueType    string  `parquet:"valtype_cd"`
	TextValue    *string `parquet:"tval_char,optional"`
	NumValue     *string `parquet:"nval_num,optional"`
	ValueFlag    *string `parquet:"valueflag_cd,optional"`
	Units        *string `parquet:"units_cd,optional"`
	StartDate    *string `parquet:"start_date,optional"`
	EndDate      *string `parquet:"end_date,optional"`
	Source       string  `parquet:"sourcesystem_cd"`
}

// NewRow flattens f.
func NewRow(sourceID string, kind model.FileKind, f model.Fact) Row {
	r := Row{
		SourceID:     sourceID,
		File:         kind.FileName(),
		ConceptCode:  f.ConceptCode,
		ModifierCode: f.ModifierCode,
		Instance:     int32(f.Instance),
		ValueType:    f.ValueType,
		TextValue:    f.TextValue,
		NumValue:     f.NumValue,
		ValueFlag:    f.ValueFlag,
		Units:        f.Units,
		Source:       f.Source,
	}
	if f.StartDate != nil {
		r.StartDate = model.Str(normalize.FormatFactDate(*f.StartDate))
	}
	if f.EndDate != nil {
		r.EndDate = model.Str(normalize.FormatFactDate(*f.EndDate))
	}
	return r
}
