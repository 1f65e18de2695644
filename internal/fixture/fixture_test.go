package fixture

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"
)

func TestGenerate_Default(t *testing.T) {
	exp, err := Generate(DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(exp.IDs) != 4000 {
		t.Errorf("IDs = %d, want 4000", len(exp.IDs))
	}
	for _, name := range []string{"FALL.csv", "FAB.csv", "ICD.csv", "OPS.csv"} {
		if len(exp.Files[name]) == 0 {
			t.Errorf("%s missing", name)
		}
	}
	lines := bytes.Count(exp.Files["FALL.csv"], []byte("\n"))
	if lines != 4001 {
		t.Errorf("FALL.csv lines = %d, want 4001", lines)
	}
}

func TestExport_WriteZip(t *testing.T) {
	exp, err := Generate(Options{Encounters: 3, FirstID: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "p21.zip")
	if err := exp.WriteZip(path); err != nil {
		t.Fatalf("WriteZip: %v", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "FALL.csv" {
		t.Errorf("unexpected entries: %d", len(zr.File))
	}
}
