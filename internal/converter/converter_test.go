package converter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ginjaninja78/jpk-to-pdf/internal/config"
	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
)

const sampleJPK = "../jpkparser/testdata/jpk_fa.xml"

const brokenJPK = `<?xml version="1.0" encoding="UTF-8"?>
<JPK>
  <Podmiot1><IdentyfikatorPodmiotu><NIP>5250000000</NIP><PelnaNazwa>Przykład</PelnaNazwa></IdentyfikatorPodmiotu></Podmiot1>
  <Faktura><P_1>2025-01-28</P_1><P_2A>FV/1</P_2A><P_13_1>10</P_13_1><P_14_1>2.30</P_14_1><P_15>12.30</P_15></Faktura>
  <Faktura><P_1>2025-01-28</P_1><P_2A>FV/2</P_2A><P_13_1>10,00</P_13_1><P_14_1>2.30</P_14_1><P_15>12.30</P_15></Faktura>
  <Faktura><P_1>2025-01-28</P_1><P_2A>FV/3</P_2A><P_13_1>5</P_13_1><P_14_1>1.15</P_14_1><P_15>6.15</P_15></Faktura>
</JPK>`

func testConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	cfg := config.DefaultMainConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "faktury")
	return cfg
}

func newConverter(cfg *config.MainConfig) *Converter {
	c := New(cfg, nil)
	c.now = func() time.Time { return time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func writeJPK(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jpk.xml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunSeparate(t *testing.T) {
	cfg := testConfig(t)
	c := newConverter(cfg)
	c.SetBackend(render.RecordingBackend{})

	res := c.Run(sampleJPK)
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}

	want := []string{
		"Faktura_FV_2025_001.txt",
		"Faktura_FV_2025_002.txt",
		"processing_summary_20250201_093000.txt",
	}
	if diff := cmp.Diff(want, listDir(t, cfg.OutputDir)); diff != "" {
		t.Errorf("output dir mismatch (-want +got):\n%s", diff)
	}
	if res.ErrorLog != "" {
		t.Errorf("unexpected error log %s", res.ErrorLog)
	}
	if res.Summary.DryRun || len(res.Summary.GeneratedFiles) != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}

	wantStats := ProcessingStats{Invoices: 2, Rendered: 2, OrphanLines: 1, Pages: 2}
	res.Stats.ProcessingTime = 0
	if diff := cmp.Diff(wantStats, res.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	doc, _ := os.ReadFile(filepath.Join(cfg.OutputDir, "Faktura_FV_2025_001.txt"))
	for _, text := range []string{`"Faktura VAT FV/2025/001"`, `"Termin płatności: 2025-02-04"`, `"` + config.DefaultBankAccount + `"`} {
		if !strings.Contains(string(doc), text) {
			t.Errorf("document missing %s", text)
		}
	}
}

func TestRunSingleWithPDFAndReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "single"
	cfg.WriteReport = true

	res := newConverter(cfg).Run(sampleJPK)
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}
	if len(res.OutputFiles) != 1 || filepath.Base(res.OutputFiles[0]) != "Faktury.pdf" {
		t.Fatalf("output files = %v", res.OutputFiles)
	}
	data, err := os.ReadFile(res.OutputFiles[0])
	if err != nil || !strings.HasPrefix(string(data), "%PDF-") {
		t.Errorf("Faktury.pdf is not a PDF (err %v)", err)
	}
	if filepath.Base(res.ReportFile) != "raport_20250201_093000.xlsx" {
		t.Errorf("report file = %q", res.ReportFile)
	}
	if res.Stats.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Stats.Pages)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	c := newConverter(cfg)
	c.SetDryRun(true)

	res := c.Run(writeJPK(t, brokenJPK))
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}
	if res.Stats.Rendered != 2 || res.Stats.Failed != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if _, err := os.Stat(cfg.OutputDir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output dir created on dry run: %v", err)
	}
	if !res.Summary.DryRun || res.Summary.Rendered != 2 || res.Summary.Failed != 1 || res.SummaryLog != "" {
		t.Errorf("summary = %+v, log %q", res.Summary, res.SummaryLog)
	}
}

func TestSkippedInvoicesAreLogged(t *testing.T) {
	cfg := testConfig(t)
	c := newConverter(cfg)
	c.SetBackend(render.RecordingBackend{})

	res := c.Run(writeJPK(t, brokenJPK))
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}
	if res.Stats.Failed != 1 || len(res.OutputFiles) != 2 {
		t.Fatalf("stats = %+v, files = %v", res.Stats, res.OutputFiles)
	}
	if res.Batch.Validation.ErrorCount != 1 {
		t.Errorf("validation errors = %d, want 1", res.Batch.Validation.ErrorCount)
	}

	log, err := os.ReadFile(res.ErrorLog)
	if err != nil {
		t.Fatalf("error log: %v", err)
	}
	for _, want := range []string{"Invoice:        FV/2", "Field:          net_total", "Value:          10,00"} {
		if !strings.Contains(string(log), want) {
			t.Errorf("error log missing %q:\n%s", want, log)
		}
	}
}

func TestStrictRunFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContinueOnError = false
	c := newConverter(cfg)
	c.SetBackend(render.RecordingBackend{})

	res := c.Run(writeJPK(t, brokenJPK))
	if res.Success {
		t.Fatal("strict run succeeded")
	}
	var ie *render.InvoiceError
	if !errors.As(res.Error, &ie) || ie.InvoiceID != "FV/2" {
		t.Errorf("error = %v", res.Error)
	}
	if len(res.OutputFiles) != 0 {
		t.Errorf("files written on strict failure: %v", res.OutputFiles)
	}
	if log, _ := os.ReadFile(res.ErrorLog); !strings.Contains(string(log), "Error Type:     strict") {
		t.Errorf("error log = %q", log)
	}
}

func TestRunMissingFile(t *testing.T) {
	res := newConverter(testConfig(t)).Run("does-not-exist.xml")
	if res.Success || res.Error == nil || res.Batch != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessFromReader(t *testing.T) {
	cfg := testConfig(t)
	cfg.BankAccount = "mBank 12 3456"
	c := newConverter(cfg)
	c.SetBackend(render.RecordingBackend{})

	batch, err := c.Process(strings.NewReader(brokenJPK))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if batch.Seller.BankAccount != "mBank 12 3456" || batch.Seller.Name != "Przykład" {
		t.Errorf("seller = %+v", batch.Seller)
	}
	files := OutputFiles(batch.Render)
	if len(files) != 2 || files[0].Name != "Faktura_FV_1.txt" || files[1].Name != "Faktura_FV_3.txt" {
		t.Errorf("files = %+v", files)
	}
	if _, err := os.Stat(cfg.OutputDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("Process wrote to the output directory")
	}

	if _, err := c.Process(strings.NewReader("<html/>")); err == nil {
		t.Error("expected error for a non-JPK document")
	}
}
