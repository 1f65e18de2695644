package model

// Row is one CSV record keyed by normalized (lowercase) column name.
// An empty string means the field is absent.
type Row map[string]string

// Get returns the value of column, or "" when the column is missing.
func (r Row) Get(column string) string {
	return r[column]
}

// Has reports whether column carries a non-empty value.
func (r Row) Has(column string) bool {
	return r[column] != ""
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// IDColumn is the encounter identifier column present in every P21 file.
const IDColumn = "khinterneskennzeichen"

// AdmissionColumn holds the raw admission timestamp in fall.csv.
const AdmissionColumn = "aufnahmedatum"
