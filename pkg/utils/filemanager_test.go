package utils

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	fm := NewFileManager(filepath.Join(t.TempDir(), "faktury"))
	fm.Now = func() time.Time { return fixedNow }
	if err := fm.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return fm
}

func TestWriteFiles(t *testing.T) {
	fm := newTestManager(t)
	files := []OutputFile{
		{Name: "Faktura_FV_1.pdf", Data: []byte("%PDF-1")},
		{Name: "Faktura_FV_2.pdf", Data: []byte("%PDF-2")},
	}
	paths, err := fm.WriteFiles(files)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	for i, path := range paths {
		got, err := os.ReadFile(path)
		if err != nil || !bytes.Equal(got, files[i].Data) {
			t.Errorf("%s = %q, %v", path, got, err)
		}
	}

	// Rewriting replaces and leaves no temporary files behind.
	if _, err := fm.WriteFile(OutputFile{Name: "Faktura_FV_1.pdf", Data: []byte("new")}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, _ := os.ReadDir(fm.OutputDir)
	if len(entries) != 2 {
		t.Errorf("output dir has %d entries, want 2", len(entries))
	}
}

func TestWriteFileRejectsEscapingNames(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"", "..", "../x.pdf", "sub/x.pdf"} {
		if _, err := fm.WriteFile(OutputFile{Name: name}); err == nil {
			t.Errorf("name %q accepted", name)
		}
	}
}

func TestZipFiles(t *testing.T) {
	files := []OutputFile{
		{Name: "Faktura_A.pdf", Data: []byte("one")},
		{Name: "Faktura_B.pdf", Data: []byte("two")},
	}
	var buf bytes.Buffer
	if err := ZipFiles(&buf, files, fixedNow); err != nil {
		t.Fatalf("ZipFiles: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive has %d entries", len(zr.File))
	}
	for i, zf := range zr.File {
		if zf.Name != files[i].Name {
			t.Errorf("entry %d = %q, want %q", i, zf.Name, files[i].Name)
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(data, files[i].Data) {
			t.Errorf("entry %s = %q", zf.Name, data)
		}
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		format string
		ext    string
		params map[string]string
		want   string
	}{
		{"faktury_{timestamp}", ".zip", nil, "faktury_20250201_093000.zip"},
		{"raport_{date}.xlsx", ".xlsx", nil, "raport_20250201.xlsx"},
		{"{name}_{time}", ".txt", map[string]string{"name": "jpk"}, "jpk_093000.txt"},
	}
	for _, tt := range tests {
		if got := GenerateOutputFileName(tt.format, tt.ext, fixedNow, tt.params); got != tt.want {
			t.Errorf("GenerateOutputFileName(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}

	name := GenerateOutputFileName("{uuid}", ".pdf", fixedNow, nil)
	if _, err := uuid.Parse(strings.TrimSuffix(name, ".pdf")); err != nil {
		t.Errorf("uuid placeholder produced %q", name)
	}
	if _, err := uuid.Parse(GenerateRunID()); err != nil {
		t.Error("GenerateRunID is not a UUID")
	}
}

func TestWriteErrorLog(t *testing.T) {
	fm := newTestManager(t)
	if path, err := fm.WriteErrorLog(nil); path != "" || err != nil {
		t.Errorf("empty log = %q, %v", path, err)
	}

	path, err := fm.WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    fixedNow,
		SourceFile:   "jpk.xml",
		ErrorType:    "render",
		ErrorMessage: "malformed monetary value",
		InvoiceID:    "FV/2",
		InvoiceIndex: 2,
		FieldName:    "net_total",
		FieldValue:   "1,00",
	}})
	if err != nil {
		t.Fatalf("WriteErrorLog: %v", err)
	}
	if filepath.Base(path) != "error_log_20250201_093000.txt" {
		t.Errorf("log path = %s", path)
	}
	data, _ := os.ReadFile(path)
	for _, want := range []string{"Total Errors: 1", "Invoice:        FV/2", "Position:       2", "Value:          1,00"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestManager(t)
	path, err := fm.WriteSummaryLog(ProcessingSummary{
		RunID:          "run-1",
		SourceFile:     "jpk.xml",
		Mode:           "separate",
		StartTime:      fixedNow,
		EndTime:        fixedNow.Add(1500 * time.Millisecond),
		TotalInvoices:  3,
		Rendered:       2,
		Failed:         1,
		GeneratedFiles: []string{"Faktura_FV_1.pdf", "Faktura_FV_3.pdf"},
	})
	if err != nil {
		t.Fatalf("WriteSummaryLog: %v", err)
	}
	data, _ := os.ReadFile(path)
	for _, want := range []string{"Run ID:         run-1", "Duration:       1.5s", "Rendered:           2", "  Faktura_FV_3.pdf"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("summary missing %q:\n%s", want, data)
		}
	}
}
