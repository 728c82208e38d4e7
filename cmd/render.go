// =============================================================================
// JPK to PDF - Render Command
// =============================================================================
//
// This file defines the 'render' command, the main command of the tool. It
// runs the whole pipeline for one JPK_FA file.
//
// COMMAND USAGE:
//   jpk2pdf render <file.xml> [flags]
//
// FLAGS:
//   --mode          : "separate" (one PDF per invoice) or "single" (Faktury.pdf)
//   --output-dir    : Where documents and logs are written
//   --bank-account  : Bank account printed on every invoice
//   --pagination    : "continue" or "none"
//   --strict        : Abort on the first invoice that cannot be rendered
//   --dry-run       : Lay out every invoice without writing anything and
//                     print the processing summary instead
//   --report        : Also write an XLSX batch report
//   --workers       : Number of invoices rendered at once
//
// Flags override the configuration file, which overrides the defaults.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ginjaninja78/jpk-to-pdf/internal/config"
	"github.com/ginjaninja78/jpk-to-pdf/internal/converter"
	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
	"github.com/ginjaninja78/jpk-to-pdf/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// dryRun lays out every invoice without writing output files.
	dryRun bool

	// strict aborts the batch on the first invoice that cannot be rendered.
	strict bool

	// writeReport adds the XLSX report.
	writeReport bool

	flagMode        string
	flagOutputDir   string
	flagBankAccount string
	flagPagination  string
	flagWorkers     int
)

// =============================================================================
// RENDER COMMAND DEFINITION
// =============================================================================

// renderCmd represents the 'render' command.
var renderCmd = &cobra.Command{
	Use:   "render <file.xml>",
	Short: "Render the invoices of a JPK_FA file as PDF",
	Long: `The render command reads a JPK_FA export, resolves the seller, validates
every invoice and renders them as A4 VAT invoices.

In separate mode every invoice becomes Faktura_<number>.pdf; in single mode
all invoices are written to Faktury.pdf, each starting on a new page.

Invoices that cannot be rendered (for example a total that is not a number)
are skipped and listed in the error log, unless --strict is given.`,

	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRenderFlags(cmd, mainConfig); err != nil {
			return err
		}
		return runRender(cmd.OutOrStdout(), args[0])
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(renderCmd)
	registerRenderFlags(renderCmd)
}

func registerRenderFlags(c *cobra.Command) {
	c.Flags().StringVar(&flagMode, "mode", "", `Output mode: "separate" or "single"`)
	c.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for generated files")
	c.Flags().StringVar(&flagBankAccount, "bank-account", "", "Bank account printed on every invoice")
	c.Flags().StringVar(&flagPagination, "pagination", "", `Long tables: "continue" or "none"`)
	c.Flags().IntVar(&flagWorkers, "workers", 0, "Number of invoices rendered at once")
	c.Flags().BoolVar(&strict, "strict", false, "Abort on the first invoice that cannot be rendered")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "Lay out every invoice without writing output files")
	c.Flags().BoolVar(&writeReport, "report", false, "Also write an XLSX batch report")
}

// applyRenderFlags copies the flags the user actually set onto the
// configuration and validates the result.
func applyRenderFlags(cmd *cobra.Command, cfg *config.MainConfig) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		mode, err := render.ParseMode(flagMode)
		if err != nil {
			return err
		}
		cfg.Mode = string(mode)
	}
	if flags.Changed("pagination") {
		p, err := render.ParsePagination(flagPagination)
		if err != nil {
			return err
		}
		cfg.Pagination = string(p)
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flagOutputDir
	}
	if flags.Changed("bank-account") {
		cfg.BankAccount = flagBankAccount
	}
	if flags.Changed("workers") {
		if flagWorkers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", flagWorkers)
		}
		cfg.MaxConcurrency = flagWorkers
	}
	if flags.Changed("strict") {
		cfg.ContinueOnError = !strict
	}
	if flags.Changed("report") {
		cfg.WriteReport = writeReport
	}
	return nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runRender runs the pipeline and prints a summary to out.
func runRender(out io.Writer, xmlPath string) error {
	fmt.Fprintln(out, "=== JPK to PDF ===")
	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing will be written")
	}

	conv := converter.New(mainConfig, logger)
	conv.SetDryRun(dryRun)
	result := conv.Run(xmlPath)

	printRenderSummary(out, result)
	if dryRun && result.Success {
		fmt.Fprintln(out)
		if err := utils.FormatSummary(out, result.Summary); err != nil {
			return err
		}
	}

	if !result.Success {
		return result.Error
	}
	return nil
}

func printRenderSummary(out io.Writer, result converter.Result) {
	if result.Batch != nil && result.Batch.Render != nil {
		for _, f := range result.Batch.Render.Files {
			fmt.Fprintf(out, "  ✓ %s (%d page(s), %d invoice(s))\n", f.Name, f.Pages, len(f.InvoiceIDs))
		}
		for _, f := range result.Batch.Render.Failures {
			fmt.Fprintf(out, "  ✗ %s: %v\n", f.InvoiceID, f.Err)
		}
	}

	stats := result.Stats
	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Source file:     %s\n", filepath.Base(result.FilePath))
	fmt.Fprintf(out, "Invoices:        %d\n", stats.Invoices)
	fmt.Fprintf(out, "Rendered:        %d\n", stats.Rendered)
	fmt.Fprintf(out, "Skipped:         %d\n", stats.Failed)
	fmt.Fprintf(out, "Orphan lines:    %d\n", stats.OrphanLines)
	fmt.Fprintf(out, "Warnings:        %d\n", stats.Warnings)
	fmt.Fprintf(out, "Pages:           %d\n", stats.Pages)
	fmt.Fprintf(out, "Time elapsed:    %s\n", stats.ProcessingTime)

	if result.ReportFile != "" {
		fmt.Fprintf(out, "Report:          %s\n", result.ReportFile)
	}
	if result.ErrorLog != "" {
		fmt.Fprintf(out, "\nErrors have been logged to %s\n", result.ErrorLog)
	}
	if !result.Success {
		fmt.Fprintf(out, "\n✗ %v\n", result.Error)
	}
}
