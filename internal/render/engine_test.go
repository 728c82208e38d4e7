package render

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ginjaninja78/jpk-to-pdf/internal/amount"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
)

// captureBackend keeps every document it creates so tests can look at the
// recorded pages.
type captureBackend struct {
	mu   sync.Mutex
	docs []*Recording
}

func (b *captureBackend) NewDocument() (Document, error) {
	r := &Recording{}
	b.mu.Lock()
	b.docs = append(b.docs, r)
	b.mu.Unlock()
	return r, nil
}

func (b *captureBackend) Extension() string { return ".txt" }

type failingBackend struct{}

func (failingBackend) NewDocument() (Document, error) { return nil, errors.New("out of fonts") }
func (failingBackend) Extension() string              { return ".pdf" }

func TestSeparateModeNaming(t *testing.T) {
	e := New(RecordingBackend{})
	res, err := e.Render(testSeller, []types.Invoice{testInvoice("FV/2025/001", 1)}, ModeSeparate)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(res.Files))
	}
	if got, want := res.Files[0].Name, "Faktura_FV_2025_001.txt"; got != want {
		t.Errorf("name = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"FV/2025/001"}, res.Files[0].InvoiceIDs); diff != "" {
		t.Errorf("invoice ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSeparateModeKeepsInputOrder(t *testing.T) {
	var invoices []types.Invoice
	for _, id := range []string{"A/1", "B/2", "C/3", "D/4", "E/5", "F/6"} {
		invoices = append(invoices, testInvoice(id, 2))
	}
	res, err := New(RecordingBackend{}, WithWorkers(4)).Render(testSeller, invoices, ModeSeparate)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var names []string
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	want := []string{"Faktura_A_1.txt", "Faktura_B_2.txt", "Faktura_C_3.txt", "Faktura_D_4.txt", "Faktura_E_5.txt", "Faktura_F_6.txt"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("file order mismatch (-want +got):\n%s", diff)
	}
	if res.Rendered() != len(invoices) {
		t.Errorf("Rendered() = %d, want %d", res.Rendered(), len(invoices))
	}
}

func TestSeparateModeKeepsDuplicateNumbers(t *testing.T) {
	invoices := []types.Invoice{
		testInvoice("FV/1", 1),
		testInvoice("FV/1", 2),
		testInvoice("FV_1", 3),
		testInvoice("FV/1_2", 1),
	}
	res, err := New(RecordingBackend{}, WithWorkers(2)).Render(testSeller, invoices, ModeSeparate)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var names []string
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	want := []string{"Faktura_FV_1.txt", "Faktura_FV_1_2.txt", "Faktura_FV_1_3.txt", "Faktura_FV_1_2_2.txt"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("file names mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleModePagesMatchSeparateMode(t *testing.T) {
	invoices := []types.Invoice{
		testInvoice("FV/1", 1),
		testInvoice("FV/2", 4),
		testInvoice("FV/3", 2),
	}
	invoices[1].Buyer.TaxID = ""

	single := &captureBackend{}
	res, err := New(single).Render(testSeller, invoices, ModeSingle)
	if err != nil {
		t.Fatalf("Render single: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].Name != "Faktury.txt" {
		t.Fatalf("single mode files = %+v", res.Files)
	}
	if res.Files[0].Pages != len(invoices) {
		t.Fatalf("single document has %d pages, want %d", res.Files[0].Pages, len(invoices))
	}

	singlePages := single.docs[0].Pages()
	for i, inv := range invoices {
		separate := &captureBackend{}
		if _, err := New(separate).Render(testSeller, []types.Invoice{inv}, ModeSeparate); err != nil {
			t.Fatalf("Render separate %s: %v", inv.ID, err)
		}
		if diff := cmp.Diff(separate.docs[0].Pages()[0], singlePages[i]); diff != "" {
			t.Errorf("page %d differs from separate rendering of %s (-separate +single):\n%s", i+1, inv.ID, diff)
		}
	}
}

func TestFailingInvoicesAreSkipped(t *testing.T) {
	bad := testInvoice("FV/BAD", 1)
	bad.NetTotal = "12,50"
	noID := testInvoice("", 1)
	invoices := []types.Invoice{testInvoice("FV/1", 1), bad, noID, testInvoice("FV/4", 1)}

	for _, mode := range []Mode{ModeSeparate, ModeSingle} {
		t.Run(string(mode), func(t *testing.T) {
			res, err := New(RecordingBackend{}, WithWorkers(2)).Render(testSeller, invoices, mode)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if res.Rendered() != 2 {
				t.Errorf("rendered %d invoices, want 2", res.Rendered())
			}
			if len(res.Failures) != 2 {
				t.Fatalf("got %d failures, want 2", len(res.Failures))
			}

			first, second := res.Failures[0], res.Failures[1]
			if first.Index != 1 || first.InvoiceID != "FV/BAD" {
				t.Errorf("first failure = %+v", first)
			}
			if !errors.Is(first, amount.ErrMalformed) {
				t.Errorf("first failure does not wrap ErrMalformed: %v", first)
			}
			var fe *FieldError
			if !errors.As(first, &fe) || fe.Field != "net_total" {
				t.Errorf("first failure field = %+v", fe)
			}
			if second.Index != 2 || !errors.Is(second, ErrMissingField) {
				t.Errorf("second failure = %v", second)
			}
		})
	}
}

func TestStrictModeAbortsOnFirstFailure(t *testing.T) {
	first := testInvoice("FV/2", 1)
	first.GrossTotal = ""
	second := testInvoice("FV/3", 1)
	second.Lines[0].Net = "n/a"
	invoices := []types.Invoice{testInvoice("FV/1", 1), first, second}

	for _, mode := range []Mode{ModeSeparate, ModeSingle} {
		t.Run(string(mode), func(t *testing.T) {
			res, err := New(RecordingBackend{}, WithStrict(true), WithWorkers(3)).Render(testSeller, invoices, mode)
			if err == nil {
				t.Fatalf("expected error, got result %+v", res)
			}
			var ie *InvoiceError
			if !errors.As(err, &ie) {
				t.Fatalf("error %v is not an *InvoiceError", err)
			}
			if ie.InvoiceID != "FV/2" || !errors.Is(err, ErrMissingField) {
				t.Errorf("strict failure = %v, want the missing gross total of FV/2", err)
			}
		})
	}
}

func TestSingleModeWithNothingRenderable(t *testing.T) {
	bad := testInvoice("FV/1", 1)
	bad.VATTotal = "?"
	res, err := New(RecordingBackend{}).Render(testSeller, []types.Invoice{bad}, ModeSingle)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.Files) != 0 {
		t.Errorf("got %d files for an all-failing batch", len(res.Files))
	}

	res, err = New(RecordingBackend{}).Render(testSeller, nil, ModeSeparate)
	if err != nil || len(res.Files) != 0 {
		t.Errorf("empty batch = %+v, %v", res, err)
	}
}

func TestBackendErrorFailsBatch(t *testing.T) {
	for _, mode := range []Mode{ModeSeparate, ModeSingle} {
		if _, err := New(failingBackend{}).Render(testSeller, []types.Invoice{testInvoice("FV/1", 1)}, mode); err == nil {
			t.Errorf("%s: expected backend error", mode)
		}
	}
}

func TestUnknownMode(t *testing.T) {
	if _, err := New(RecordingBackend{}).Render(testSeller, nil, Mode("merged")); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := ParseMode("merged"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
	if _, err := ParsePagination("shrink"); err == nil {
		t.Error("ParsePagination accepted an unknown policy")
	}
}

func TestRecordingIsDeterministic(t *testing.T) {
	invoices := []types.Invoice{testInvoice("FV/1", 45), testInvoice("FV/2", 3)}
	var outputs [][]byte
	for range 3 {
		res, err := New(RecordingBackend{}, WithWorkers(2)).Render(testSeller, invoices, ModeSingle)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		outputs = append(outputs, res.Files[0].Data)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("render %d differs from the first", i+1)
		}
	}
}

func TestPDFBackend(t *testing.T) {
	backend := NewPDFBackend(DefaultFonts()).WithCreationDate(time.Date(2025, 1, 28, 12, 0, 0, 0, time.UTC))
	invoices := []types.Invoice{testInvoice("FV/2025/001", 2), testInvoice("FV/2025/002", 60)}
	invoices[0].Buyer.Name = "Zakład Usług Żółć i Gęśl"

	res, err := New(backend).Render(testSeller, invoices, ModeSingle)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	f := res.Files[0]
	if f.Name != "Faktury.pdf" {
		t.Errorf("name = %q", f.Name)
	}
	if !bytes.HasPrefix(f.Data, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", f.Data[:min(len(f.Data), 16)])
	}
	// One page for the first invoice, two for the long one.
	if f.Pages != 3 {
		t.Errorf("pages = %d, want 3", f.Pages)
	}

	res, err = New(backend, WithWorkers(2)).Render(testSeller, invoices, ModeSeparate)
	if err != nil {
		t.Fatalf("Render separate: %v", err)
	}
	if len(res.Files) != 2 || res.Files[1].Name != "Faktura_FV_2025_002.pdf" {
		t.Fatalf("separate files = %d", len(res.Files))
	}
}

func TestLoadFontsFallsBackToEmbedded(t *testing.T) {
	fonts, err := LoadFonts("", "")
	if err != nil {
		t.Fatalf("LoadFonts: %v", err)
	}
	if len(fonts.Regular) == 0 || len(fonts.Bold) == 0 {
		t.Error("embedded fonts are empty")
	}
	if _, err := LoadFonts("/nonexistent/font.ttf", ""); err == nil {
		t.Error("expected error for a missing font file")
	}
}
