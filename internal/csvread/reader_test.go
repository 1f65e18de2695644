package csvread

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fall.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReader_HeaderNormalized(t *testing.T) {
	path := writeCSV(t, "\ufeffKH-internes-Kennzeichen;Aufnahmedatum\n1001;202001010000\n")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	want := []string{"khinterneskennzeichen", "aufnahmedatum"}
	got := r.Header()
	if len(got) != len(want) {
		t.Fatalf("header = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReader_ReadChunk(t *testing.T) {
	var b strings.Builder
	b.WriteString("khinterneskennzeichen;plz\n")
	for i := 0; i < 25; i++ {
		b.WriteString("id;12345\n")
	}
	r, err := NewReader(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	var sizes []int
	for {
		rows, err := r.ReadChunk(10)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}
		sizes = append(sizes, len(rows))
	}
	if len(sizes) != 3 || sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Errorf("chunk sizes = %v, want [10 10 5]", sizes)
	}
	if r.RowNum() != 25 {
		t.Errorf("RowNum = %d, want 25", r.RowNum())
	}
}

func TestReader_ShortRecordsPadded(t *testing.T) {
	r, err := NewReader(strings.NewReader("a;b;c\n1\n1;2;3\n"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rows, err := r.ReadChunk(0)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["a"] != "1" || rows[0]["b"] != "" || rows[0]["c"] != "" {
		t.Errorf("short row = %v", rows[0])
	}
	if rows[1]["c"] != "3" {
		t.Errorf("full row = %v", rows[1])
	}
}

func TestReader_ExtraFieldsRejected(t *testing.T) {
	path := writeCSV(t, "a;b;c\n1;2;3\n1;2;3;4\n")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadRecord(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err = r.ReadRecord()
	if !errors.Is(err, ErrTooManyFields) {
		t.Fatalf("err = %v, want ErrTooManyFields", err)
	}
	if !strings.Contains(err.Error(), "fall.csv: record 2") {
		t.Errorf("error %q does not name file and record", err)
	}
}

func TestReader_InvalidUTF8Record(t *testing.T) {
	path := writeCSV(t, "a;b\nok;m\nA\xffB;m\n")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	rec, err := r.ReadRecord()
	if err != nil || rec[0] != "ok" {
		t.Fatalf("first record = %v, %v", rec, err)
	}
	_, err = r.ReadRecord()
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("err = %v, want ErrInvalidUTF8", err)
	}
	if !strings.Contains(err.Error(), "fall.csv: record 2") {
		t.Errorf("error %q does not name file and record", err)
	}
}

func TestReader_InvalidUTF8Header(t *testing.T) {
	_, err := NewReader(strings.NewReader("a\xff;b\n1;2\n"))
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("err = %v, want ErrInvalidUTF8", err)
	}
}

func TestReader_BOMWithUmlauts(t *testing.T) {
	r, err := NewReader(strings.NewReader("\ufeffFallzusammenführungsgrund;b\nÄ;2\n"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header()[0] != "fallzusammenführungsgrund" {
		t.Errorf("header = %q", r.Header())
	}
	rec, err := r.ReadRecord()
	if err != nil || rec[0] != "Ä" {
		t.Errorf("record = %q, %v", rec, err)
	}
}

func TestReader_EmptyFile(t *testing.T) {
	if _, err := NewReader(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestCountRecords(t *testing.T) {
	path := writeCSV(t, "a;b\n1;2\n\n3;4\n5;6\n")
	n, err := CountRecords(path)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 3 {
		t.Errorf("CountRecords = %d, want 3", n)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write([]string{"khinterneskennzeichen", "icdkode"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]string{"1;1", "F24.24"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rows, err := r.ReadChunk(10)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if rows[0]["khinterneskennzeichen"] != "1;1" {
		t.Errorf("quoted field = %q", rows[0]["khinterneskennzeichen"])
	}
}
