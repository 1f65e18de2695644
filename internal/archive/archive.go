package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the archive path does not exist.
	ErrNotFound = errors.New("archive not found")
	// ErrNotZip is returned when the file is not a readable zip archive.
	ErrNotZip = errors.New("file is not a zip archive")
)

// Workspace is a temporary directory holding the extracted CSV files of one
// import run.
type Workspace struct {
	Dir   string
	Files []string // lowercase base names of the extracted files
}

// Check verifies that path exists and is a zip archive.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, ErrNotZip)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrNotZip)
	}
	return zr.Close()
}

// Extract unpacks the regular files of the archive into a fresh temporary
// directory below parent (os.TempDir when empty). File names are lowercased
// and directory components are dropped, so nested entries land at the top
// level. The caller must call Remove on the returned workspace.
func Extract(path, parent string) (*Workspace, error) {
	if err := Check(path); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotZip)
	}
	defer zr.Close()

	dir, err := os.MkdirTemp(parent, "p21import-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{Dir: dir}

	for _, f := range zr.File {
		if !f.Mode().IsRegular() {
			continue
		}
		name := strings.ToLower(filepath.Base(filepath.FromSlash(f.Name)))
		if name == "." || name == ".." || name == "" {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			ws.Remove()
			return nil, err
		}
		ws.Files = append(ws.Files, name)
	}
	return ws, nil
}

func extractFile(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// Path returns the absolute path of an extracted file.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Has reports whether the archive contained a file with the given lowercase name.
func (w *Workspace) Has(name string) bool {
	info, err := os.Stat(w.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the workspace directory. It is safe to call more than once.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
