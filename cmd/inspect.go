// =============================================================================
// JPK to PDF - Inspect Command
// =============================================================================
//
// This file defines the 'inspect' command, which shows what a JPK_FA file
// contains and what would be printed, without rendering anything.
//
// COMMAND USAGE:
//   jpk2pdf inspect <file.xml> [--strict]
//
// FLAGS:
//   --strict : Treat warnings as errors; exit non-zero unless the file is clean
//
// OUTPUT:
//   - The resolved seller (name, NIP, address, bank account)
//   - One row per invoice: number, issue date, due date, buyer, gross total
//   - Orphaned line items
//   - Validation findings
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ginjaninja78/jpk-to-pdf/internal/jpkparser"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
	"github.com/ginjaninja78/jpk-to-pdf/internal/validation"
	"github.com/spf13/cobra"
)

// inspectStrict makes any finding fail the command.
var inspectStrict bool

// inspectCmd represents the 'inspect' command.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.xml>",
	Short: "Show the seller, invoices and validation findings of a JPK_FA file",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0], inspectStrict)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectStrict, "strict", false, "Treat warnings as errors")
}

// runInspect parses and validates the file and prints the preview.
// It returns an error when the file cannot be parsed or, with strict, when
// the validation result is not valid.
func runInspect(out io.Writer, xmlPath string, strict bool) error {
	parsed, err := jpkparser.New(logger).ParseFile(xmlPath)
	if err != nil {
		return fmt.Errorf("failed to parse JPK file: %w", err)
	}
	seller := types.Seller{Party: parsed.Seller, BankAccount: mainConfig.BankAccount}
	validator := validation.NewValidatorWithOptions(validation.Options{TreatWarningsAsErrors: strict})
	result := validator.ValidateAll(seller, parsed.Invoices)

	fmt.Fprintln(out, "=== Seller ===")
	fmt.Fprintf(out, "Name:            %s\n", orDash(seller.Name))
	fmt.Fprintf(out, "NIP:             %s\n", orDash(seller.TaxID))
	fmt.Fprintf(out, "Address:         %s\n", orDash(seller.Address))
	fmt.Fprintf(out, "Bank account:    %s\n", orDash(seller.BankAccount))

	fmt.Fprintf(out, "\n=== Invoices (%d) ===\n", len(parsed.Invoices))
	rejected := result.Rejected()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNumber\tIssued\tDue\tBuyer\tLines\tGross")
	for i, inv := range parsed.Invoices {
		mark := "✓"
		if rejected[i] {
			mark = "✗"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			mark, inv.ID, orDash(inv.IssueDate), orDash(inv.DueDate),
			orDash(inv.Buyer.Name), len(inv.Lines), inv.GrossTotal)
	}
	tw.Flush()

	if len(parsed.Orphans) > 0 {
		fmt.Fprintf(out, "\n=== Orphan line items (%d) ===\n", len(parsed.Orphans))
		for _, o := range parsed.Orphans {
			fmt.Fprintf(out, "  %s: %s\n", o.InvoiceRef, o.Line.Description)
		}
	}

	fmt.Fprintln(out, "\n=== Validation ===")
	fmt.Fprint(out, validation.FormatFindings(result.Findings))
	if len(result.Findings) == 0 {
		fmt.Fprintln(out)
	}
	if strict && !result.IsValid {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", result.ErrorCount, result.WarningCount)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
