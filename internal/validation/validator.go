// =============================================================================
// JPK to PDF - Validation Engine
// =============================================================================
//
// This module inspects a parsed batch before rendering and reports findings.
// It never changes the data; the renderer makes the final call on whether an
// invoice can be laid out.
//
// VALIDATION LEVELS:
//   1. Batch-level  : seller identity and bank account
//   2. Invoice-level: identifier, dates, declared totals
//   3. Line-level   : line amounts and the derived VAT
//
// SEVERITY:
//   - "error"   : the renderer will reject the invoice
//   - "warning" : the invoice renders, but something on it will be blank or
//                 surprising (no due date, empty seller NIP, ...)
//
// ERROR HANDLING:
//   - Findings are collected, never thrown
//   - Each finding carries the invoice, field and offending value
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ginjaninja78/jpk-to-pdf/internal/amount"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
)

// =============================================================================
// FINDINGS
// =============================================================================

// Severity ranks a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rule names.
const (
	RuleSellerIdentity = "seller_identity"
	RuleBankAccount    = "bank_account"
	RuleRequired       = "required"
	RuleDecimal        = "decimal"
	RuleDate           = "date"
	RuleFileName       = "file_name"
	RuleDuplicateID    = "duplicate_id"
	RuleNoLines        = "no_lines"
	RuleLineVAT        = "line_vat"
)

// BatchLevel is the InvoiceIndex of findings that concern the whole batch.
const BatchLevel = -1

// Finding is a single validation result.
type Finding struct {
	Severity Severity

	// Rule is the check that produced the finding.
	Rule string

	// InvoiceIndex is the position of the invoice in the batch, or BatchLevel.
	InvoiceIndex int

	// InvoiceID is the invoice number, if the finding concerns an invoice.
	InvoiceID string

	// Field names the offending field, e.g. "net_total" or "lines[2].gross".
	Field string

	// Value is the offending value.
	Value string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (f *Finding) Error() string {
	where := "batch"
	if f.InvoiceIndex != BatchLevel {
		where = fmt.Sprintf("invoice %q (#%d)", f.InvoiceID, f.InvoiceIndex+1)
	}
	return fmt.Sprintf("[%s] %s, field '%s': %s (value: '%s')",
		strings.ToUpper(string(f.Severity)),
		where,
		f.Field,
		f.Message,
		f.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the findings of one validation run.
type Result struct {
	// IsValid is true if there are no error findings.
	IsValid bool

	// Findings holds every finding in batch order.
	Findings []*Finding

	ErrorCount   int
	WarningCount int

	// InvoicesValidated is the number of invoices inspected.
	InvoicesValidated int
}

// Rejected returns the indexes of invoices with at least one error finding.
func (r *Result) Rejected() map[int]bool {
	rejected := make(map[int]bool)
	for _, f := range r.Findings {
		if f.Severity == SeverityError && f.InvoiceIndex != BatchLevel {
			rejected[f.InvoiceIndex] = true
		}
	}
	return rejected
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options controls validation.
type Options struct {
	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool
}

// Validator inspects invoice batches.
type Validator struct {
	options Options
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options Options) *Validator {
	return &Validator{options: options}
}

// Validate inspects a batch with default options.
func Validate(seller types.Seller, invoices []types.Invoice) *Result {
	return NewValidator().ValidateAll(seller, invoices)
}

// ValidateAll inspects the seller and every invoice.
func (v *Validator) ValidateAll(seller types.Seller, invoices []types.Invoice) *Result {
	result := &Result{
		IsValid:           true,
		InvoicesValidated: len(invoices),
	}

	findings := v.validateSeller(seller)

	seen := make(map[string]int, len(invoices))
	for i := range invoices {
		findings = append(findings, v.ValidateInvoice(i, &invoices[i])...)

		id := strings.TrimSpace(invoices[i].ID)
		if id == "" {
			continue
		}
		if first, dup := seen[id]; dup {
			findings = append(findings, &Finding{
				Severity:     SeverityWarning,
				Rule:         RuleDuplicateID,
				InvoiceIndex: i,
				InvoiceID:    invoices[i].ID,
				Field:        "id",
				Value:        invoices[i].ID,
				Message:      fmt.Sprintf("Number already used by invoice #%d; in separate mode the later file gets a numeric suffix", first+1),
			})
			continue
		}
		seen[id] = i
	}

	for _, f := range findings {
		result.Findings = append(result.Findings, f)
		if f.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
		} else {
			result.WarningCount++
			if v.options.TreatWarningsAsErrors {
				result.IsValid = false
			}
		}
	}

	return result
}

func (v *Validator) validateSeller(seller types.Seller) []*Finding {
	var findings []*Finding
	for _, field := range []struct{ name, value string }{
		{"seller.name", seller.Name},
		{"seller.address", seller.Address},
		{"seller.tax_id", seller.TaxID},
	} {
		if strings.TrimSpace(field.value) == "" {
			findings = append(findings, &Finding{
				Severity:     SeverityWarning,
				Rule:         RuleSellerIdentity,
				InvoiceIndex: BatchLevel,
				Field:        field.name,
				Message:      "Not found in the declaration or any invoice; printed empty",
			})
		}
	}
	if strings.TrimSpace(seller.BankAccount) == "" {
		findings = append(findings, &Finding{
			Severity:     SeverityWarning,
			Rule:         RuleBankAccount,
			InvoiceIndex: BatchLevel,
			Field:        "seller.bank_account",
			Message:      "No bank account configured; printed empty",
		})
	}
	return findings
}

// ValidateInvoice inspects one invoice at position index.
func (v *Validator) ValidateInvoice(index int, inv *types.Invoice) []*Finding {
	var findings []*Finding
	add := func(sev Severity, rule, field, value, msg string) {
		findings = append(findings, &Finding{
			Severity:     sev,
			Rule:         rule,
			InvoiceIndex: index,
			InvoiceID:    inv.ID,
			Field:        field,
			Value:        value,
			Message:      msg,
		})
	}

	// =========================================================================
	// IDENTIFIER
	// =========================================================================

	if strings.TrimSpace(inv.ID) == "" {
		add(SeverityError, RuleRequired, "id", inv.ID, "Invoice number is empty")
	} else if bad := hazardousRunes(inv.ID); bad != "" {
		add(SeverityWarning, RuleFileName, "id", inv.ID,
			fmt.Sprintf("Contains %q, which may not be valid in a file name", bad))
	}

	// =========================================================================
	// DATES
	// =========================================================================

	if msg := validateDate(inv.IssueDate); msg != "" {
		add(SeverityWarning, RuleDate, "issue_date", inv.IssueDate, msg+"; due date and payment form omitted")
	}
	if msg := validateDate(inv.SaleDate); msg != "" {
		add(SeverityWarning, RuleDate, "sale_date", inv.SaleDate, msg)
	}

	// =========================================================================
	// TOTALS
	// =========================================================================

	for _, field := range []struct{ name, value string }{
		{"net_total", inv.NetTotal},
		{"vat_total", inv.VATTotal},
		{"gross_total", inv.GrossTotal},
	} {
		if rule, msg := validateAmount(field.value); rule != "" {
			add(SeverityError, rule, field.name, field.value, msg)
		}
	}

	// =========================================================================
	// LINE ITEMS
	// =========================================================================

	if len(inv.Lines) == 0 {
		add(SeverityWarning, RuleNoLines, "lines", "", "Invoice has no line items")
	}
	for i, li := range inv.Lines {
		netRule, netMsg := validateAmount(li.Net)
		if netRule != "" {
			add(SeverityError, netRule, fmt.Sprintf("lines[%d].net", i), li.Net, netMsg)
		}
		grossRule, grossMsg := validateAmount(li.Gross)
		if grossRule != "" {
			add(SeverityError, grossRule, fmt.Sprintf("lines[%d].gross", i), li.Gross, grossMsg)
		}
		if li.VAT == "" && netRule == "" && grossRule == "" {
			add(SeverityWarning, RuleLineVAT, fmt.Sprintf("lines[%d].vat", i), "", "VAT could not be derived; cell left blank")
		}
	}

	return findings
}

// =============================================================================
// FIELD VALIDATORS
// =============================================================================

// validateAmount returns the violated rule and a message, or empty strings.
func validateAmount(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return RuleRequired, "Amount is empty"
	}
	if _, err := amount.Parse(value); err != nil {
		return RuleDecimal, "Not a decimal number (expected e.g. 1234.50)"
	}
	return "", ""
}

// validateDate returns an error message if value is not a year-month-day date.
func validateDate(value string) string {
	if _, err := types.ParseDate(value); err != nil {
		return fmt.Sprintf("Invalid date format, expected %s", "YYYY-MM-DD")
	}
	return ""
}

// hazardousRunes returns the characters of id that are unsafe in file names
// on common platforms. "/" is excluded: it is always replaced when naming.
func hazardousRunes(id string) string {
	var bad strings.Builder
	for _, r := range id {
		if strings.ContainsRune(`\:*?"<>|`, r) || unicode.IsControl(r) {
			if !strings.ContainsRune(bad.String(), r) {
				bad.WriteRune(r)
			}
		}
	}
	return bad.String()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// FormatFindings formats findings for display or a log file.
func FormatFindings(findings []*Finding) string {
	if len(findings) == 0 {
		return "No validation findings."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Validation completed with %d finding(s):\n\n", len(findings))
	for i, f := range findings {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, f.Error())
	}
	return builder.String()
}
