// =============================================================================
// JPK to PDF - Converter Module
// =============================================================================
//
// This module orchestrates the conversion pipeline for a single JPK_FA file,
// from XML parsing to documents on disk.
//
// CONVERSION PIPELINE:
//   1. Parse the JPK_FA file into normalized invoices
//   2. Resolve the seller (parsed identity + configured bank account)
//   3. Validate the batch and log the findings
//   4. Render the invoices (separate or single mode)
//   5. Write the documents to the output directory
//   6. Write the XLSX report (optional)
//   7. Write the error log and the processing summary
//
// DRY RUN:
//   Steps 1-4 run against the recording backend, so every invoice is fully
//   laid out, but nothing is written.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/ginjaninja78/jpk-to-pdf/internal/config"
	"github.com/ginjaninja78/jpk-to-pdf/internal/jpkparser"
	"github.com/ginjaninja78/jpk-to-pdf/internal/logging"
	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
	"github.com/ginjaninja78/jpk-to-pdf/internal/report"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
	"github.com/ginjaninja78/jpk-to-pdf/internal/validation"
	"github.com/ginjaninja78/jpk-to-pdf/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// RunID identifies the run in logs and reports.
	RunID string

	// OutputFiles are the paths of the generated documents. Empty on dry runs.
	OutputFiles []string

	// ReportFile, ErrorLog and SummaryLog are the paths of the auxiliary
	// files, empty when not written.
	ReportFile string
	ErrorLog   string
	SummaryLog string

	// Success indicates whether the pipeline completed. Individual invoices
	// may still have been skipped; see Stats.Failed.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Batch holds the intermediate results, nil if parsing failed.
	Batch *Batch

	Stats ProcessingStats

	// Summary describes a completed run. On real runs it is also written to
	// SummaryLog; on dry runs it is only returned.
	Summary utils.ProcessingSummary
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Invoices is the number of invoices found in the file.
	Invoices int

	// Rendered is the number of invoices placed in a document.
	Rendered int

	// Failed is the number of invoices skipped by the renderer.
	Failed int

	// OrphanLines is the number of dropped line items.
	OrphanLines int

	// Warnings is the number of warning findings.
	Warnings int

	// Pages is the total page count of the generated documents.
	Pages int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// Batch is a parsed, validated and rendered JPK file.
type Batch struct {
	Parsed     *jpkparser.Result
	Seller     types.Seller
	Validation *validation.Result
	Render     *render.Result
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the pipeline with one configuration.
type Converter struct {
	mainConfig *config.MainConfig
	logger     logging.Logger
	dryRun     bool

	// backend is created on first use unless set explicitly.
	backendOnce sync.Once
	backend     render.Backend
	backendErr  error

	now func() time.Time
}

// New creates a Converter.
//
// PARAMETERS:
//   - mainConfig: The resolved configuration (file, environment and flags).
//   - logger: Receives progress and per-invoice messages. Nil discards them.
func New(mainConfig *config.MainConfig, logger logging.Logger) *Converter {
	if logger == nil {
		logger = logging.Discard
	}
	return &Converter{
		mainConfig: mainConfig,
		logger:     logger,
		now:        time.Now,
	}
}

// SetDryRun makes Run lay out every invoice without writing anything.
func (c *Converter) SetDryRun(dryRun bool) {
	c.dryRun = dryRun
}

// SetBackend replaces the PDF backend.
func (c *Converter) SetBackend(backend render.Backend) {
	c.backendOnce.Do(func() {})
	c.backend = backend
}

func (c *Converter) renderBackend() (render.Backend, error) {
	if c.dryRun {
		return render.RecordingBackend{}, nil
	}
	c.backendOnce.Do(func() {
		fonts, err := render.LoadFonts(c.mainConfig.Fonts.Regular, c.mainConfig.Fonts.Bold)
		if err != nil {
			c.backendErr = err
			return
		}
		c.backend = render.NewPDFBackend(fonts)
	})
	return c.backend, c.backendErr
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for one JPK file.
func (c *Converter) Run(xmlPath string) Result {
	startTime := c.now()
	result := Result{
		FilePath: xmlPath,
		RunID:    utils.GenerateRunID(),
	}
	c.logger.Info("Processing file: %s (run %s)", xmlPath, result.RunID)

	// =========================================================================
	// STEPS 1-4: PARSE, RESOLVE SELLER, VALIDATE, RENDER
	// =========================================================================

	parsed, err := jpkparser.New(c.logger).ParseFile(xmlPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to parse JPK file: %w", err)
		return result
	}

	batch, err := c.process(parsed)
	result.Batch = batch
	if batch != nil {
		result.Stats = statsFor(batch)
	}

	fm := utils.NewFileManager(c.mainConfig.OutputDir)
	fm.Now = c.now

	if err != nil {
		result.Error = err
		if !c.dryRun {
			result.ErrorLog = c.writeErrorLog(fm, xmlPath, batch, err)
		}
		return result
	}

	if c.dryRun {
		c.logger.Info("Dry run: %d invoice(s) laid out on %d page(s), nothing written",
			result.Stats.Rendered, result.Stats.Pages)
		result.Success = true
		result.Stats.ProcessingTime = c.now().Sub(startTime)
		result.Summary = c.summary(result, startTime)
		return result
	}

	// =========================================================================
	// STEP 5: WRITE DOCUMENTS
	// =========================================================================

	if err := fm.EnsureDirectories(); err != nil {
		result.Error = err
		return result
	}
	result.OutputFiles, err = fm.WriteFiles(OutputFiles(batch.Render))
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}
	for _, path := range result.OutputFiles {
		c.logger.Debug("Wrote %s", path)
	}
	c.logger.Info("Wrote %d document(s) to %s", len(result.OutputFiles), c.mainConfig.OutputDir)

	// =========================================================================
	// STEP 6: REPORT
	// =========================================================================

	if c.mainConfig.WriteReport {
		name := utils.GenerateOutputFileName("raport_{timestamp}", ".xlsx", startTime, nil)
		path := filepath.Join(c.mainConfig.OutputDir, name)
		err := report.SaveAs(path, report.Input{
			SourceFile:  xmlPath,
			RunID:       result.RunID,
			GeneratedAt: startTime,
			Seller:      batch.Seller,
			Invoices:    batch.Parsed.Invoices,
			Orphans:     batch.Parsed.Orphans,
			Render:      batch.Render,
			Findings:    batch.Validation.Findings,
		})
		if err != nil {
			// The documents are already written; the report is auxiliary.
			c.logger.Warn("Failed to write report: %v", err)
		} else {
			result.ReportFile = path
		}
	}

	// =========================================================================
	// STEP 7: LOGS
	// =========================================================================

	result.ErrorLog = c.writeErrorLog(fm, xmlPath, batch, nil)

	result.Success = true
	result.Stats.ProcessingTime = c.now().Sub(startTime)

	result.Summary = c.summary(result, startTime)
	if path, err := fm.WriteSummaryLog(result.Summary); err != nil {
		c.logger.Warn("Failed to write summary: %v", err)
	} else {
		result.SummaryLog = path
	}

	return result
}

// Process parses, validates and renders a JPK document held in memory.
// Nothing is written to disk.
func (c *Converter) Process(r io.Reader) (*Batch, error) {
	parsed, err := jpkparser.New(c.logger).Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JPK file: %w", err)
	}
	return c.process(parsed)
}

// process runs steps 2-4. On a render error the returned batch is still
// non-nil so callers can report what was parsed.
func (c *Converter) process(parsed *jpkparser.Result) (*Batch, error) {
	batch := &Batch{
		Parsed: parsed,
		Seller: types.Seller{Party: parsed.Seller, BankAccount: c.mainConfig.BankAccount},
	}

	batch.Validation = validation.Validate(batch.Seller, parsed.Invoices)
	for _, f := range batch.Validation.Findings {
		if f.Severity == validation.SeverityWarning {
			c.logger.Warn("%s", f.Error())
		} else {
			c.logger.Debug("%s", f.Error())
		}
	}

	backend, err := c.renderBackend()
	if err != nil {
		return batch, fmt.Errorf("failed to prepare renderer: %w", err)
	}
	engine := render.New(backend,
		render.WithPagination(c.mainConfig.RenderPagination()),
		render.WithWorkers(c.mainConfig.MaxConcurrency),
		render.WithStrict(!c.mainConfig.ContinueOnError),
		render.WithLogger(c.logger),
	)
	rendered, err := engine.Render(batch.Seller, parsed.Invoices, c.mainConfig.RenderMode())
	if err != nil {
		return batch, fmt.Errorf("failed to render invoices: %w", err)
	}
	batch.Render = rendered
	return batch, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// OutputFiles converts rendered documents for the file manager.
func OutputFiles(r *render.Result) []utils.OutputFile {
	if r == nil {
		return nil
	}
	files := make([]utils.OutputFile, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, utils.OutputFile{Name: f.Name, Data: f.Data})
	}
	return files
}

func (c *Converter) summary(result Result, startTime time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		RunID:         result.RunID,
		SourceFile:    result.FilePath,
		Mode:          c.mainConfig.Mode,
		StartTime:     startTime,
		EndTime:       startTime.Add(result.Stats.ProcessingTime),
		DryRun:        c.dryRun,
		TotalInvoices: result.Stats.Invoices,
		Rendered:      result.Stats.Rendered,
		Failed:        result.Stats.Failed,
		OrphanLines:   result.Stats.OrphanLines,
		Warnings:      result.Stats.Warnings,
		Pages:         result.Stats.Pages,
		ReportFile:    result.ReportFile,
	}
	for _, path := range result.OutputFiles {
		summary.GeneratedFiles = append(summary.GeneratedFiles, filepath.Base(path))
	}
	return summary
}

func statsFor(batch *Batch) ProcessingStats {
	stats := ProcessingStats{
		Invoices:    len(batch.Parsed.Invoices),
		OrphanLines: len(batch.Parsed.Orphans),
	}
	if batch.Validation != nil {
		stats.Warnings = batch.Validation.WarningCount
	}
	if batch.Render != nil {
		stats.Rendered = batch.Render.Rendered()
		stats.Failed = len(batch.Render.Failures)
		for _, f := range batch.Render.Files {
			stats.Pages += f.Pages
		}
	}
	return stats
}

// writeErrorLog records skipped invoices and, if given, the error that ended
// the run. It returns the log path, or "" when there was nothing to record.
func (c *Converter) writeErrorLog(fm *utils.FileManager, source string, batch *Batch, fatal error) string {
	now := c.now()
	var entries []utils.ErrorLogEntry

	if batch != nil && batch.Render != nil {
		for _, f := range batch.Render.Failures {
			entries = append(entries, invoiceEntry(now, source, "render", f))
		}
	}
	if fatal != nil {
		var ie *render.InvoiceError
		if errors.As(fatal, &ie) {
			entries = append(entries, invoiceEntry(now, source, "strict", ie))
		} else {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    now,
				SourceFile:   source,
				ErrorType:    "batch",
				ErrorMessage: fatal.Error(),
			})
		}
	}
	if len(entries) == 0 {
		return ""
	}

	if err := fm.EnsureDirectories(); err != nil {
		c.logger.Warn("Failed to write error log: %v", err)
		return ""
	}
	path, err := fm.WriteErrorLog(entries)
	if err != nil {
		c.logger.Warn("Failed to write error log: %v", err)
		return ""
	}
	c.logger.Info("Wrote error log to: %s", path)
	return path
}

func invoiceEntry(now time.Time, source, kind string, ie *render.InvoiceError) utils.ErrorLogEntry {
	entry := utils.ErrorLogEntry{
		Timestamp:    now,
		SourceFile:   source,
		ErrorType:    kind,
		ErrorMessage: ie.Err.Error(),
		InvoiceID:    ie.InvoiceID,
		InvoiceIndex: ie.Index + 1,
	}
	var fe *render.FieldError
	if errors.As(ie.Err, &fe) {
		entry.FieldName = fe.Field
		entry.FieldValue = fe.Value
	}
	return entry
}
