package model

import "fmt"

// FileKind identifies one of the CSV files of a P21 export.
type FileKind int

const (
	KindEncounter FileKind = iota
	KindDepartment
	KindDiagnosis
	KindProcedure
)

// AllKinds lists the file kinds in upload order. The encounter file always
// goes first since it carries the provenance markers.
var AllKinds = []FileKind{KindEncounter, KindDepartment, KindDiagnosis, KindProcedure}

var kindFiles = map[FileKind]string{
	KindEncounter:  "fall.csv",
	KindDepartment: "fab.csv",
	KindDiagnosis:  "icd.csv",
	KindProcedure:  "ops.csv",
}

// FileName returns the lowercase CSV file name of the kind, e.g. "fall.csv".
func (k FileKind) FileName() string {
	if name, ok := kindFiles[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Required reports whether the export is unusable without this file.
func (k FileKind) Required() bool {
	return k == KindEncounter
}

func (k FileKind) String() string {
	return k.FileName()
}

// KindByFileName returns the FileKind for a lowercase file name, or ok=false.
func KindByFileName(name string) (FileKind, bool) {
	for k, n := range kindFiles {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
