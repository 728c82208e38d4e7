// =============================================================================
// JPK to PDF - Batch Report
// =============================================================================
//
// This module writes an XLSX workbook describing one conversion run, for the
// accounting staff who check the batch before sending documents out.
//
// WORKBOOK STRUCTURE:
//
//   | Sheet         | Contents                                              |
//   |---------------|-------------------------------------------------------|
//   | Podsumowanie  | source file, run id, seller, counts                   |
//   | Faktury       | one row per invoice: dates, buyer, totals, file, status|
//   | Błędy         | invoices the renderer rejected, with the reason       |
//   | Uwagi         | validation findings                                   |
//   | Osierocone    | line items referencing unknown invoices               |
//
// Amounts are stored as numbers with two decimals so the sheet can be summed.
//
// =============================================================================

package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ginjaninja78/jpk-to-pdf/internal/amount"
	"github.com/ginjaninja78/jpk-to-pdf/internal/jpkparser"
	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
	"github.com/ginjaninja78/jpk-to-pdf/internal/validation"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetSummary  = "Podsumowanie"
	SheetInvoices = "Faktury"
	SheetFailures = "Błędy"
	SheetFindings = "Uwagi"
	SheetOrphans  = "Osierocone"
)

// Invoice statuses.
const (
	StatusRendered = "wygenerowana"
	StatusRejected = "odrzucona"
)

// Input is everything known about a finished run.
type Input struct {
	SourceFile  string
	RunID       string
	GeneratedAt time.Time

	Seller   types.Seller
	Invoices []types.Invoice
	Orphans  []jpkparser.Orphan

	// Render is the renderer outcome; nil for validation-only runs.
	Render *render.Result

	Findings []*validation.Finding
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SaveAs builds the workbook and saves it at path.
func SaveAs(path string, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

// Build creates the workbook in memory. The caller must Close it.
func Build(in Input) (*excelize.File, error) {
	b := &builder{f: excelize.NewFile()}
	if err := b.init(); err != nil {
		b.f.Close()
		return nil, err
	}

	steps := []func(Input) error{
		b.summary,
		b.invoices,
		b.failures,
		b.findings,
		b.orphans,
	}
	for _, step := range steps {
		if err := step(in); err != nil {
			b.f.Close()
			return nil, err
		}
	}
	b.f.SetActiveSheet(0)
	return b.f, nil
}

// =============================================================================
// SHEET BUILDERS
// =============================================================================

type builder struct {
	f      *excelize.File
	bold   int
	number int
}

func (b *builder) init() error {
	if err := b.f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	for _, name := range []string{SheetInvoices, SheetFailures, SheetFindings, SheetOrphans} {
		if _, err := b.f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	var err error
	if b.bold, err = b.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	// Built-in format 2 is "0.00".
	if b.number, err = b.f.NewStyle(&excelize.Style{NumFmt: 2}); err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}
	return nil
}

// row writes values starting at column A of the given 1-based row.
func (b *builder) row(sheet string, n int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := b.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, n, err)
	}
	return nil
}

func (b *builder) header(sheet string, labels ...interface{}) error {
	if err := b.row(sheet, 1, labels...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(labels), 1)
	if err != nil {
		return err
	}
	if err := b.f.SetCellStyle(sheet, "A1", last, b.bold); err != nil {
		return err
	}
	return b.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (b *builder) summary(in Input) error {
	rendered, failed, files := 0, 0, 0
	if in.Render != nil {
		rendered = in.Render.Rendered()
		failed = len(in.Render.Failures)
		files = len(in.Render.Files)
	}
	rows := [][]interface{}{
		{"Plik źródłowy", in.SourceFile},
		{"Identyfikator przebiegu", in.RunID},
		{"Wygenerowano", in.GeneratedAt.Format(time.DateTime)},
		{"Sprzedawca", in.Seller.Name},
		{"NIP sprzedawcy", in.Seller.TaxID},
		{"Adres sprzedawcy", in.Seller.Address},
		{"Rachunek bankowy", in.Seller.BankAccount},
		{"Liczba faktur", len(in.Invoices)},
		{"Wygenerowane", rendered},
		{"Odrzucone", failed},
		{"Pliki", files},
		{"Pozycje osierocone", len(in.Orphans)},
		{"Uwagi", len(in.Findings)},
	}
	for i, r := range rows {
		if err := b.row(SheetSummary, i+1, r...); err != nil {
			return err
		}
	}
	if err := b.f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), b.bold); err != nil {
		return err
	}
	return b.f.SetColWidth(SheetSummary, "A", "A", 24)
}

func (b *builder) invoices(in Input) error {
	if err := b.header(SheetInvoices,
		"Numer", "Data wystawienia", "Data dostawy", "Termin płatności",
		"Nabywca", "NIP nabywcy", "Netto", "VAT", "Brutto", "Pozycje", "Plik", "Status",
	); err != nil {
		return err
	}

	fileOf := make(map[int]string)
	rejected := make(map[int]bool)
	if in.Render != nil {
		for _, fail := range in.Render.Failures {
			rejected[fail.Index] = true
		}
		// Rendered invoices appear in Files in input order.
		next := 0
		for _, file := range in.Render.Files {
			for range file.InvoiceIDs {
				for rejected[next] {
					next++
				}
				fileOf[next] = file.Name
				next++
			}
		}
	}

	for i, inv := range in.Invoices {
		status := ""
		if in.Render != nil {
			status = StatusRendered
			if rejected[i] {
				status = StatusRejected
			}
		}
		n := i + 2
		if err := b.row(SheetInvoices, n,
			inv.ID, inv.IssueDate, inv.SaleDate, inv.DueDate,
			inv.Buyer.Name, inv.Buyer.TaxID,
			number(inv.NetTotal), number(inv.VATTotal), number(inv.GrossTotal),
			len(inv.Lines), fileOf[i], status,
		); err != nil {
			return err
		}
	}
	if len(in.Invoices) > 0 {
		if err := b.f.SetCellStyle(SheetInvoices, "G2", fmt.Sprintf("I%d", len(in.Invoices)+1), b.number); err != nil {
			return err
		}
	}
	if err := b.f.SetColWidth(SheetInvoices, "A", "A", 18); err != nil {
		return err
	}
	return b.f.SetColWidth(SheetInvoices, "E", "E", 36)
}

func (b *builder) failures(in Input) error {
	if err := b.header(SheetFailures, "Numer", "Pozycja w pliku", "Powód"); err != nil {
		return err
	}
	if in.Render == nil {
		return nil
	}
	for i, fail := range in.Render.Failures {
		if err := b.row(SheetFailures, i+2, fail.InvoiceID, fail.Index+1, fail.Err.Error()); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) findings(in Input) error {
	if err := b.header(SheetFindings, "Waga", "Reguła", "Numer", "Pole", "Wartość", "Opis"); err != nil {
		return err
	}
	for i, f := range in.Findings {
		if err := b.row(SheetFindings, i+2, string(f.Severity), f.Rule, f.InvoiceID, f.Field, f.Value, f.Message); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) orphans(in Input) error {
	if err := b.header(SheetOrphans, "Numer faktury", "Opis", "Ilość", "Jedn.", "Netto", "Brutto"); err != nil {
		return err
	}
	for i, o := range in.Orphans {
		if err := b.row(SheetOrphans, i+2, o.InvoiceRef, o.Line.Description, o.Line.Quantity, o.Line.Unit, o.Line.Net, o.Line.Gross); err != nil {
			return err
		}
	}
	return nil
}

// number converts decimal text into a cell value. Text that does not parse is
// written as-is so the report still shows what the export contained.
func number(s string) interface{} {
	d, err := amount.Parse(s)
	if err != nil {
		return s
	}
	return d.Round(amount.Places).InexactFloat64()
}
