// =============================================================================
// JPK to PDF - Shared Types
// =============================================================================
//
// This package contains the normalized invoice model shared by the parser,
// the validator, the renderer, and the report writer. Keeping it here avoids
// import cycles between those packages.
//
// OWNERSHIP:
//   - An Invoice owns its LineItems exclusively.
//   - Values are built once during normalization and never mutated afterwards.
//
// =============================================================================

package types

import (
	"strings"
	"time"

	"github.com/ginjaninja78/jpk-to-pdf/internal/amount"
)

// DateLayout is the calendar format used by the export for every date field
// and for derived dates.
const DateLayout = "2006-01-02"

// inputDateLayout also accepts single-digit months and days (2025-1-5).
const inputDateLayout = "2006-1-2"

// PaymentTermDays is the number of calendar days between issue and due date.
const PaymentTermDays = 7

// =============================================================================
// PARTIES
// =============================================================================

// Party is a named entity (seller or buyer).
type Party struct {
	// Name is the full legal name.
	Name string

	// Address is a single line of text. It may be empty.
	Address string

	// TaxID is the tax identifier (NIP). It is optional.
	TaxID string
}

// Seller is the issuing party plus the bank account printed on every invoice.
// It is the same for every invoice in a batch.
type Seller struct {
	Party

	// BankAccount is a free-form display string (bank name, SWIFT, IBAN).
	BankAccount string
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is one billed product or service row within an invoice.
type LineItem struct {
	// Description is the product or service name.
	Description string

	// Quantity is printed verbatim. It is never parsed as a number.
	Quantity string

	// Unit is the unit of measure, printed verbatim.
	Unit string

	// Net is the net amount of the line, as decimal text.
	Net string

	// Gross is the gross amount of the line, as decimal text.
	Gross string

	// VAT is Gross - Net rounded to two decimals, or empty if either input
	// does not parse.
	VAT string
}

// NewLineItem builds a line item and derives its VAT amount.
func NewLineItem(description, quantity, unit, net, gross string) LineItem {
	return LineItem{
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		Net:         net,
		Gross:       gross,
		VAT:         amount.LineVAT(net, gross),
	}
}

// =============================================================================
// INVOICES
// =============================================================================

// Invoice is one billable transaction with a buyer, line items, and declared
// totals. The totals are rendered as declared; they are not checked against
// the sum of the lines, because they may include rows at other VAT rates that
// are not broken out per line.
type Invoice struct {
	// ID is the invoice number, used verbatim on the document.
	ID string

	// IssueDate is the issue date as found in the export.
	IssueDate string

	// SaleDate is the delivery or sale date as found in the export.
	SaleDate string

	// DueDate is IssueDate + PaymentTermDays, or empty if IssueDate does not
	// parse.
	DueDate string

	// Buyer is the invoiced party.
	Buyer Party

	// NetTotal, VATTotal and GrossTotal are the declared totals as decimal text.
	NetTotal   string
	VATTotal   string
	GrossTotal string

	// Lines holds the line items in document order.
	Lines []LineItem
}

// ParseDate parses a year-month-day date. Month and day may be written with
// one or two digits.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(inputDateLayout, strings.TrimSpace(s))
}

// DueDateFor derives the payment due date from an issue date, formatted with
// DateLayout. It returns an empty string when the issue date does not parse.
func DueDateFor(issueDate string) string {
	issued, err := ParseDate(issueDate)
	if err != nil {
		return ""
	}
	return issued.AddDate(0, 0, PaymentTermDays).Format(DateLayout)
}

// SanitizeID makes an invoice identifier usable as a file name by replacing
// every "/" with "_". No other character is altered.
func SanitizeID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}
