package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p21.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestCheck(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		err := Check(filepath.Join(t.TempDir(), "nope.zip"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fall.csv")
		os.WriteFile(path, []byte("a;b\n"), 0644)
		if err := Check(path); !errors.Is(err, ErrNotZip) {
			t.Fatalf("got %v, want ErrNotZip", err)
		}
	})
	t.Run("valid", func(t *testing.T) {
		path := writeZip(t, map[string]string{"FALL.csv": "a\n"})
		if err := Check(path); err != nil {
			t.Fatalf("Check: %v", err)
		}
	})
}

func TestExtract_LowercasesNames(t *testing.T) {
	path := writeZip(t, map[string]string{
		"FALL.CSV":       "a\n",
		"export/Icd.csv": "b\n",
	})
	ws, err := Extract(path, t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defer ws.Remove()

	for _, name := range []string{"fall.csv", "icd.csv"} {
		if !ws.Has(name) {
			t.Errorf("expected %s in workspace", name)
		}
	}
	if len(ws.Files) != 2 {
		t.Errorf("Files = %v, want 2 entries", ws.Files)
	}
}

func TestWorkspace_Remove(t *testing.T) {
	path := writeZip(t, map[string]string{"fall.csv": "a\n"})
	ws, err := Extract(path, t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
	if err := ws.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}
