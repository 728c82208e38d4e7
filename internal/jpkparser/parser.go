// =============================================================================
// JPK to PDF - JPK_FA Parser
// =============================================================================
//
// This module reads a JPK_FA export (the Polish standard audit file for
// invoices) and normalizes it into the shared invoice model.
//
// DOCUMENT STRUCTURE (relevant parts only):
//
//   <JPK>
//     <Podmiot1>                       seller declaration (optional)
//       <IdentyfikatorPodmiotu>  NIP, PelnaNazwa
//       <AdresPodmiotu>          KodKraju, Ulica, NrDomu, NrLokalu,
//                                KodPocztowy, Miejscowosc
//     <Faktura>  ...                   one per invoice
//     <FakturaWiersz> ...              one per line item, linked by P_2B
//   </JPK>
//
// Elements are matched by local name, so the namespace revision of the export
// does not matter. The declared encoding (UTF-8 or windows-1250 in practice)
// is honored.
//
// SELLER IDENTITY:
//   The seller is resolved field by field from an ordered list of sources:
//   the Podmiot1 declaration first, then every Faktura in document order
//   (P_3C, P_3D, P_4B). Each field takes the first non-empty value found.
//
// ORPHANS:
//   A line item whose P_2B matches no invoice number is dropped from the
//   output. Orphans are counted, returned and logged, never silently lost.
//
// =============================================================================

package jpkparser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/ginjaninja78/jpk-to-pdf/internal/logging"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
	"golang.org/x/net/html/charset"
)

// ErrNotJPK is returned when the document root is not a JPK element.
var ErrNotJPK = errors.New("not a JPK document")

// Seller identity fields, as reported in Result.MissingSeller.
const (
	FieldSellerName    = "seller.name"
	FieldSellerAddress = "seller.address"
	FieldSellerTaxID   = "seller.tax_id"
)

// =============================================================================
// XML STRUCTURE
// =============================================================================

type jpkDocument struct {
	XMLName  xml.Name
	Podmiot1 *podmiot      `xml:"Podmiot1"`
	Faktury  []faktura     `xml:"Faktura"`
	Wiersze  []fakturaLine `xml:"FakturaWiersz"`
}

type podmiot struct {
	NIP        string `xml:"IdentyfikatorPodmiotu>NIP"`
	PelnaNazwa string `xml:"IdentyfikatorPodmiotu>PelnaNazwa"`
	Adres      *adres `xml:"AdresPodmiotu"`
}

type adres struct {
	KodKraju    string `xml:"KodKraju"`
	Ulica       string `xml:"Ulica"`
	NrDomu      string `xml:"NrDomu"`
	NrLokalu    string `xml:"NrLokalu"`
	Miejscowosc string `xml:"Miejscowosc"`
	KodPocztowy string `xml:"KodPocztowy"`
}

type faktura struct {
	IssueDate    string `xml:"P_1"`
	Number       string `xml:"P_2A"`
	BuyerName    string `xml:"P_3A"`
	BuyerAddress string `xml:"P_3B"`
	SellerName   string `xml:"P_3C"`
	SellerAddr   string `xml:"P_3D"`
	SellerTaxID  string `xml:"P_4B"`
	BuyerTaxID   string `xml:"P_5B"`
	SaleDate     string `xml:"P_6"`
	NetTotal     string `xml:"P_13_1"`
	VATTotal     string `xml:"P_14_1"`
	GrossTotal   string `xml:"P_15"`
}

type fakturaLine struct {
	InvoiceRef  string `xml:"P_2B"`
	Description string `xml:"P_7"`
	Unit        string `xml:"P_8A"`
	Quantity    string `xml:"P_8B"`
	Net         string `xml:"P_11"`
	Gross       string `xml:"P_11A"`
}

// =============================================================================
// RESULT
// =============================================================================

// Orphan is a line item that references no invoice in the document.
type Orphan struct {
	// InvoiceRef is the invoice number the line pointed at.
	InvoiceRef string

	Line types.LineItem
}

// Result is a normalized JPK_FA document.
type Result struct {
	// Seller is the resolved seller identity, without a bank account.
	Seller types.Party

	// Invoices are in document order, each with its lines in document order.
	Invoices []types.Invoice

	// Orphans are the dropped line items.
	Orphans []Orphan

	// MissingSeller lists seller fields no source could supply.
	MissingSeller []string

	// SourceFile is the parsed path, empty for readers.
	SourceFile string
}

// =============================================================================
// PARSER
// =============================================================================

// Parser normalizes JPK_FA documents.
type Parser struct {
	log logging.Logger
}

// New creates a Parser. A nil logger discards messages.
func New(log logging.Logger) *Parser {
	if log == nil {
		log = logging.Discard
	}
	return &Parser{log: log}
}

// ParseFile reads and normalizes a JPK_FA file.
func (p *Parser) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JPK file: %w", err)
	}
	defer f.Close()

	result, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result.SourceFile = path
	return result, nil
}

// Parse reads and normalizes a JPK_FA document.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc jpkDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode XML: %w", err)
	}
	if doc.XMLName.Local != "JPK" {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrNotJPK, doc.XMLName.Local)
	}

	result := &Result{Seller: resolveSeller(&doc)}
	for _, f := range []struct{ name, value string }{
		{FieldSellerName, result.Seller.Name},
		{FieldSellerAddress, result.Seller.Address},
		{FieldSellerTaxID, result.Seller.TaxID},
	} {
		if f.value == "" {
			result.MissingSeller = append(result.MissingSeller, f.name)
			p.log.Warn("Seller identity field %s not found in any source", f.name)
		}
	}

	// Lines attach to the first invoice carrying their number.
	byNumber := make(map[string]int, len(doc.Faktury))
	result.Invoices = make([]types.Invoice, 0, len(doc.Faktury))
	for _, fa := range doc.Faktury {
		inv := normalizeInvoice(fa)
		if inv.DueDate == "" {
			p.log.Warn("Invoice %q: issue date %q is not a %s date, due date omitted", inv.ID, inv.IssueDate, types.DateLayout)
		}
		if _, dup := byNumber[inv.ID]; !dup {
			byNumber[inv.ID] = len(result.Invoices)
		}
		result.Invoices = append(result.Invoices, inv)
	}

	for _, w := range doc.Wiersze {
		ref := clean(w.InvoiceRef)
		line := types.NewLineItem(clean(w.Description), clean(w.Quantity), clean(w.Unit), clean(w.Net), clean(w.Gross))
		idx, ok := byNumber[ref]
		if !ok {
			result.Orphans = append(result.Orphans, Orphan{InvoiceRef: ref, Line: line})
			continue
		}
		result.Invoices[idx].Lines = append(result.Invoices[idx].Lines, line)
	}
	if n := len(result.Orphans); n > 0 {
		p.log.Warn("Dropped %d line item(s) referencing unknown invoices", n)
		for _, o := range result.Orphans {
			p.log.Debug("Orphan line %q references invoice %q", o.Line.Description, o.InvoiceRef)
		}
	}

	p.log.Info("Parsed %d invoice(s), %d orphan line(s)", len(result.Invoices), len(result.Orphans))
	return result, nil
}

func normalizeInvoice(fa faktura) types.Invoice {
	issue := clean(fa.IssueDate)
	return types.Invoice{
		ID:        clean(fa.Number),
		IssueDate: issue,
		SaleDate:  clean(fa.SaleDate),
		DueDate:   types.DueDateFor(issue),
		Buyer: types.Party{
			Name:    clean(fa.BuyerName),
			Address: clean(fa.BuyerAddress),
			TaxID:   clean(fa.BuyerTaxID),
		},
		NetTotal:   clean(fa.NetTotal),
		VATTotal:   clean(fa.VATTotal),
		GrossTotal: clean(fa.GrossTotal),
	}
}

// =============================================================================
// SELLER RESOLUTION
// =============================================================================

// sellerSources yields candidate seller identities in priority order.
func sellerSources(doc *jpkDocument) iter.Seq[types.Party] {
	return func(yield func(types.Party) bool) {
		if doc.Podmiot1 != nil {
			decl := types.Party{
				Name:  clean(doc.Podmiot1.PelnaNazwa),
				TaxID: clean(doc.Podmiot1.NIP),
			}
			if doc.Podmiot1.Adres != nil {
				decl.Address = formatAddress(doc.Podmiot1.Adres)
			}
			if !yield(decl) {
				return
			}
		}
		for _, fa := range doc.Faktury {
			if !yield(types.Party{
				Name:    clean(fa.SellerName),
				Address: clean(fa.SellerAddr),
				TaxID:   clean(fa.SellerTaxID),
			}) {
				return
			}
		}
	}
}

func resolveSeller(doc *jpkDocument) types.Party {
	var seller types.Party
	for candidate := range sellerSources(doc) {
		if seller.Name == "" {
			seller.Name = candidate.Name
		}
		if seller.Address == "" {
			seller.Address = candidate.Address
		}
		if seller.TaxID == "" {
			seller.TaxID = candidate.TaxID
		}
		if seller.Name != "" && seller.Address != "" && seller.TaxID != "" {
			break
		}
	}
	return seller
}

// formatAddress assembles "Ulica NrDomu/NrLokalu, KodPocztowy Miejscowosc",
// with the country code appended for addresses outside Poland.
func formatAddress(a *adres) string {
	var parts []string
	if street := clean(a.Ulica); street != "" {
		if nr := clean(a.NrDomu); nr != "" {
			street += " " + nr
		}
		if lok := clean(a.NrLokalu); lok != "" {
			street += "/" + lok
		}
		parts = append(parts, street)
	}
	postcode, city := clean(a.KodPocztowy), clean(a.Miejscowosc)
	if postcode != "" && city != "" {
		parts = append(parts, postcode+" "+city)
	} else if city != "" {
		parts = append(parts, city)
	}
	if country := clean(a.KodKraju); country != "" && !strings.EqualFold(country, "PL") {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
