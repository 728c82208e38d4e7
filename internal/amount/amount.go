// =============================================================================
// JPK to PDF - Monetary Amounts
// =============================================================================
//
// The export carries every monetary value as decimal text. This package turns
// that text into display strings and performs the one derived calculation the
// invoice template needs (per-line VAT).
//
// RULES:
//   - Display uses exactly two fractional digits and a decimal point,
//     regardless of the process locale.
//   - A value that is not a decimal number is reported with ErrMalformed.
//     Whether that is fatal is the caller's decision.
//   - Quantities and units are never parsed here; they are opaque text.
//
// =============================================================================

package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits used for every displayed amount.
const Places = 2

// ErrMalformed is returned when a monetary field is not a decimal number.
var ErrMalformed = errors.New("malformed monetary value")

// Parse reads a decimal amount. Surrounding whitespace is ignored.
func Parse(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrMalformed)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return d, nil
}

// Format renders a decimal-as-text field with two fractional digits.
//
// Examples: "1234.5" -> "1234.50", "0" -> "0.00", "-3.456" -> "-3.46".
func Format(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.StringFixed(Places), nil
}

// LineVAT derives the VAT amount of a line item as gross - net, rounded to two
// decimals. If either input does not parse, the result is empty: per-line VAT
// is presentational and a bad value must not sink the whole line.
func LineVAT(net, gross string) string {
	n, err := Parse(net)
	if err != nil {
		return ""
	}
	g, err := Parse(gross)
	if err != nil {
		return ""
	}
	return g.Sub(n).StringFixed(Places)
}
