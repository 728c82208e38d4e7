// =============================================================================
// JPK to PDF - Invoice Layout
// =============================================================================
//
// This file maps one invoice onto fixed-size pages. It is a cursor model: every
// block starts at a position derived from the block above it, and y decreases
// as content is added.
//
// PAGE STRUCTURE:
//
//   Sprzedawca:                     Nabywca:
//     seller name                     buyer name (1-2 wrapped rows)
//     seller address                  buyer address (1-2 wrapped rows)
//     NIP: ...                        NIP: ... (only if present)
//
//     Numer rachunku bankowego:
//     bank account
//                                   <- min(seller bottom, buyer bottom) - 20
//   Faktura VAT <number>
//   Data wystawienia / Data dostawy / [Termin płatności / Forma płatności]
//
//   Opis | Ilość | Jedn. | Netto | VAT | Brutto      <- header - 105
//   one row per line item, 15pt pitch
//                             Suma netto / VAT / brutto  <- last row - 10
//
// The two columns have independent heights; everything below them starts
// under whichever column ran longer, so long buyer data never overlaps the
// header block.
//
// =============================================================================

package render

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/jpk-to-pdf/internal/amount"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
)

// =============================================================================
// LAYOUT CONSTANTS
// =============================================================================

const (
	// A4 height in points.
	pageHeight = 841.8898
	topY       = pageHeight - 50

	fontSize  = 10.0
	titleSize = 12.0

	// Party columns.
	sellerLabelX = 50.0
	sellerTextX  = 60.0
	buyerLabelX  = 320.0
	buyerTextX   = 330.0
	partyGap     = 15.0
	partyPitch   = 12.0

	// Buyer name and address wrapping.
	wrapWidth     = 36
	maxBuyerLines = 2

	// Header block.
	headerGap   = 20.0
	headerPitch = 15.0

	// Line-item table.
	tableGap   = 105.0
	rowPitch   = 15.0
	descX      = 50.0
	qtyX       = 250.0
	unitX      = 300.0
	netLabelX  = 350.0
	vatLabelX  = 420.0
	grossLabX  = 480.0
	netRightX  = 400.0
	vatRightX  = 450.0
	grossRight = 540.0

	// Totals block.
	totalsGap    = 10.0
	totalsLabelX = 300.0
	totalsPitch  = 15.0

	// Continuation pages. A baseline below minBaseline is off the page; only
	// then does the continue policy break, so anything that fits on one page
	// is drawn exactly as without pagination.
	minBaseline       = 0.0
	continuationTable = 30.0
)

// Template labels.
const (
	labelSeller       = "Sprzedawca:"
	labelBuyer        = "Nabywca:"
	labelTaxID        = "NIP: "
	labelBankAccount  = "Numer rachunku bankowego:"
	labelTitle        = "Faktura VAT "
	labelContinuation = "ciąg dalszy, strona"
	labelIssueDate    = "Data wystawienia: "
	labelSaleDate     = "Data dostawy towarów/wykonania usługi: "
	labelDueDate      = "Termin płatności: "
	labelPaymentForm  = "Forma płatności: przelew"
	labelNetTotal     = "Suma netto PLN:"
	labelVATTotal     = "Suma VAT 23% PLN:"
	labelGrossTotal   = "Suma brutto PLN:"
)

type column struct {
	x     float64
	label string
}

var tableHeader = []column{
	{descX, "Opis towaru/usługi"},
	{qtyX, "Ilość"},
	{unitX, "Jedn."},
	{netLabelX, "Netto"},
	{vatLabelX, "VAT 23%"},
	{grossLabX, "Brutto"},
}

// =============================================================================
// SHEET PREPARATION
// =============================================================================

// sheet is an invoice with every field formatted for display. Building it is
// the only step that can fail, so a document is never left half drawn.
type sheet struct {
	id           string
	issueDate    string
	saleDate     string
	dueDate      string
	buyerName    []string
	buyerAddress []string
	buyerTaxID   string
	rows         []sheetRow
	netTotal     string
	vatTotal     string
	grossTotal   string
}

type sheetRow struct {
	description string
	quantity    string
	unit        string
	net         string
	vat         string
	gross       string
}

// prepare formats an invoice. The identifier, the three totals and the net
// and gross amount of every line are load-bearing: a missing or malformed value
// fails the invoice. Everything else degrades to empty text.
func prepare(inv types.Invoice) (*sheet, error) {
	if strings.TrimSpace(inv.ID) == "" {
		return nil, &FieldError{Field: "id", Err: ErrMissingField}
	}

	sh := &sheet{
		id:           inv.ID,
		issueDate:    inv.IssueDate,
		saleDate:     inv.SaleDate,
		dueDate:      inv.DueDate,
		buyerName:    WrapLines(inv.Buyer.Name, wrapWidth, maxBuyerLines),
		buyerAddress: WrapLines(inv.Buyer.Address, wrapWidth, maxBuyerLines),
		buyerTaxID:   inv.Buyer.TaxID,
		rows:         make([]sheetRow, 0, len(inv.Lines)),
	}

	var err error
	if sh.netTotal, err = formatRequired("net_total", inv.NetTotal); err != nil {
		return nil, err
	}
	if sh.vatTotal, err = formatRequired("vat_total", inv.VATTotal); err != nil {
		return nil, err
	}
	if sh.grossTotal, err = formatRequired("gross_total", inv.GrossTotal); err != nil {
		return nil, err
	}

	for i, li := range inv.Lines {
		row := sheetRow{
			description: li.Description,
			quantity:    li.Quantity,
			unit:        li.Unit,
		}
		if row.net, err = formatRequired(fmt.Sprintf("lines[%d].net", i), li.Net); err != nil {
			return nil, err
		}
		if row.gross, err = formatRequired(fmt.Sprintf("lines[%d].gross", i), li.Gross); err != nil {
			return nil, err
		}
		// Per-line VAT is presentational; a bad value blanks the cell only.
		row.vat, _ = amount.Format(li.VAT)
		sh.rows = append(sh.rows, row)
	}

	return sh, nil
}

func formatRequired(field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", &FieldError{Field: field, Value: value, Err: ErrMissingField}
	}
	s, err := amount.Format(value)
	if err != nil {
		return "", &FieldError{Field: field, Value: value, Err: err}
	}
	return s, nil
}

// =============================================================================
// DRAWING
// =============================================================================

// pageCursor draws one invoice, starting continuation pages when needed.
type pageCursor struct {
	c        Canvas
	sh       *sheet
	paginate bool
	page     int
}

// drawInvoice lays out a prepared invoice starting on a fresh page and returns
// the number of pages used.
func drawInvoice(c Canvas, seller types.Seller, sh *sheet, pagination Pagination) int {
	pc := &pageCursor{c: c, sh: sh, paginate: pagination == PaginateContinue}
	c.AddPage()
	pc.page = 1
	c.SetFont(Regular, fontSize)

	sellerBottom := drawSeller(c, seller)
	buyerBottom := drawBuyer(c, sh)
	headerY := min(sellerBottom, buyerBottom) - headerGap
	drawHeader(c, sh, headerY)

	lineY := pc.drawTable(headerY - tableGap)
	pc.drawTotals(lineY - totalsGap)

	return pc.page
}

// drawSeller emits the seller column and returns the y of the next free row.
// Its height is the same for every invoice of a batch.
func drawSeller(c Canvas, seller types.Seller) float64 {
	c.Text(sellerLabelX, topY, labelSeller)
	lines := []string{
		seller.Name,
		seller.Address,
		labelTaxID + seller.TaxID,
		"",
		labelBankAccount,
		seller.BankAccount,
	}
	y := topY - partyGap
	for _, line := range lines {
		c.Text(sellerTextX, y, line)
		y -= partyPitch
	}
	return y
}

// drawBuyer emits the buyer column and returns the y of the next free row.
// A missing tax id omits its row; a missing address still takes one empty row.
func drawBuyer(c Canvas, sh *sheet) float64 {
	c.Text(buyerLabelX, topY, labelBuyer)
	lines := make([]string, 0, 2*maxBuyerLines+1)
	lines = append(lines, sh.buyerName...)
	lines = append(lines, sh.buyerAddress...)
	if sh.buyerTaxID != "" {
		lines = append(lines, labelTaxID+sh.buyerTaxID)
	}
	y := topY - partyGap
	for _, line := range lines {
		c.Text(buyerTextX, y, line)
		y -= partyPitch
	}
	return y
}

func drawHeader(c Canvas, sh *sheet, y float64) {
	c.SetFont(Bold, titleSize)
	c.Text(descX, y, labelTitle+sh.id)
	c.SetFont(Regular, fontSize)
	c.Text(descX, y-headerPitch, labelIssueDate+sh.issueDate)
	c.Text(descX, y-2*headerPitch, labelSaleDate+sh.saleDate)
	if sh.dueDate != "" {
		c.Text(descX, y-3*headerPitch, labelDueDate+sh.dueDate)
		c.Text(descX, y-4*headerPitch, labelPaymentForm)
	}
}

func drawTableHeader(c Canvas, y float64) {
	c.SetFont(Bold, fontSize)
	for _, col := range tableHeader {
		c.Text(col.x, y, col.label)
	}
	c.SetFont(Regular, fontSize)
}

// drawTable emits the header row and one row per line item starting at tableY.
// It returns the y the next row would have used.
func (pc *pageCursor) drawTable(tableY float64) float64 {
	drawTableHeader(pc.c, tableY)
	lineY := tableY - rowPitch
	for _, row := range pc.sh.rows {
		if pc.paginate && lineY < minBaseline {
			tableY = pc.continuation() - continuationTable
			drawTableHeader(pc.c, tableY)
			lineY = tableY - rowPitch
		}
		pc.c.Text(descX, lineY, row.description)
		pc.c.Text(qtyX, lineY, row.quantity)
		pc.c.Text(unitX, lineY, row.unit)
		pc.c.TextRight(netRightX, lineY, row.net)
		pc.c.TextRight(vatRightX, lineY, row.vat)
		pc.c.TextRight(grossRight, lineY, row.gross)
		lineY -= rowPitch
	}
	return lineY
}

func (pc *pageCursor) drawTotals(y float64) {
	if pc.paginate && y-2*totalsPitch < minBaseline {
		y = pc.continuation() - continuationTable
	}
	c := pc.c
	c.SetFont(Bold, fontSize)
	c.Text(totalsLabelX, y, labelNetTotal)
	c.Text(totalsLabelX, y-totalsPitch, labelVATTotal)
	c.Text(totalsLabelX, y-2*totalsPitch, labelGrossTotal)
	c.SetFont(Regular, fontSize)
	c.TextRight(grossRight, y, pc.sh.netTotal)
	c.TextRight(grossRight, y-totalsPitch, pc.sh.vatTotal)
	c.TextRight(grossRight, y-2*totalsPitch, pc.sh.grossTotal)
}

// continuation starts a new page for the same invoice, draws its mini header
// and returns the y of that header.
func (pc *pageCursor) continuation() float64 {
	pc.c.AddPage()
	pc.page++
	pc.c.SetFont(Bold, titleSize)
	pc.c.Text(descX, topY, fmt.Sprintf("%s%s (%s %d)", labelTitle, pc.sh.id, labelContinuation, pc.page))
	pc.c.SetFont(Regular, fontSize)
	return topY
}
