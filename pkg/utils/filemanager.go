// =============================================================================
// JPK to PDF - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Directory management
//   - Writing generated documents into the output directory
//   - Zip packaging of a batch (web downloads)
//   - Error log and processing summary generation
//   - File naming utilities
//
// WRITE STRATEGY:
//   - Every document is written to a temporary file in the output directory
//     and renamed into place, so a crash never leaves a truncated PDF behind
//   - An existing file with the same name is replaced
//   - Error logs and summaries are timestamped and never replaced
//
// =============================================================================

package utils

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is used in generated file names.
const TimestampLayout = "20060102_150405"

// OutputFile is a named document ready to be stored.
type OutputFile struct {
	Name string
	Data []byte
}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// OutputDir is the directory where documents and logs are placed.
	OutputDir string

	// Now returns the current time. Tests replace it for stable names.
	Now func() time.Time
}

// NewFileManager creates a new FileManager for the output directory.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{
		OutputDir: outputDir,
		Now:       time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// DOCUMENT OUTPUT
// =============================================================================

// WriteFiles stores the files in the output directory and returns their paths
// in the same order.
//
// File names must not contain path separators; a name that would escape the
// output directory is rejected.
func (fm *FileManager) WriteFiles(files []OutputFile) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := fm.WriteFile(f)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteFile stores one file in the output directory.
func (fm *FileManager) WriteFile(f OutputFile) (string, error) {
	if f.Name == "" || f.Name != filepath.Base(f.Name) || f.Name == "." || f.Name == ".." {
		return "", fmt.Errorf("invalid output file name %q", f.Name)
	}
	path := filepath.Join(fm.OutputDir, f.Name)

	tmp, err := os.CreateTemp(fm.OutputDir, "."+f.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return path, nil
}

// ZipFiles writes a zip archive holding the files, in order, to w.
func ZipFiles(w io.Writer, files []OutputFile, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: modified,
		}
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", f.Name, err)
		}
		if _, err := entry.Write(f.Data); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateRunID returns a new random identifier for a processing run.
func GenerateRunID() string {
	return uuid.New().String()
}

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Date (YYYYMMDD)
//               {time}      - Time (HHMMSS)
//   - ext: The extension to enforce, with dot.
//   - now: The time used for the time placeholders.
//   - params: Extra placeholder values, without braces.
//
// EXAMPLE:
//   format: "faktury_{timestamp}", ext: ".zip"
//   output: "faktury_20250201_093000.zip"
func GenerateOutputFileName(format, ext string, now time.Time, params map[string]string) string {
	replacements := map[string]string{
		"{timestamp}": now.Format(TimestampLayout),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	if strings.Contains(format, "{uuid}") {
		replacements["{uuid}"] = uuid.New().String()
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	SourceFile   string
	ErrorType    string
	ErrorMessage string
	InvoiceID    string

	// InvoiceIndex is the 1-based position in the source file; 0 for
	// batch-level errors.
	InvoiceIndex int

	FieldName  string
	FieldValue string
}

// WriteErrorLog writes error entries to a timestamped log file in the output
// directory. Nothing is written for an empty list.
//
// RETURNS:
//   - The path to the error log file, empty if nothing was written.
//   - An error if writing fails.
func (fm *FileManager) WriteErrorLog(entries []ErrorLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := fm.Now()
	logPath := filepath.Join(fm.OutputDir, fmt.Sprintf("error_log_%s.txt", now.Format(TimestampLayout)))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "JPK to PDF - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		now.Format(time.DateTime),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format(time.DateTime),
			entry.SourceFile,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.InvoiceID != "" {
			fmt.Fprintf(writer, "  Invoice:        %s\n", entry.InvoiceID)
		}
		if entry.InvoiceIndex > 0 {
			fmt.Fprintf(writer, "  Position:       %d\n", entry.InvoiceIndex)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID      string
	SourceFile string
	Mode       string
	StartTime  time.Time
	EndTime    time.Time
	DryRun     bool

	TotalInvoices  int
	Rendered       int
	Failed         int
	OrphanLines    int
	Warnings       int
	Pages          int
	GeneratedFiles []string
	ReportFile     string
}

// WriteSummaryLog writes a processing summary to a timestamped file in the
// output directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary ProcessingSummary) (string, error) {
	summaryPath := filepath.Join(fm.OutputDir, fmt.Sprintf("processing_summary_%s.txt", fm.Now().Format(TimestampLayout)))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := FormatSummary(writer, summary); err != nil {
		return "", err
	}
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// FormatSummary writes the human-readable summary to w.
func FormatSummary(w io.Writer, summary ProcessingSummary) error {
	duration := summary.EndTime.Sub(summary.StartTime)
	_, err := fmt.Fprintf(w, "JPK to PDF - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Source File:    %s\n"+
		"  Mode:           %s\n"+
		"  Dry Run:        %t\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Invoices:           %d\n"+
		"  Rendered:           %d\n"+
		"  Failed:             %d\n"+
		"  Orphan Lines:       %d\n"+
		"  Warnings:           %d\n"+
		"  Pages:              %d\n\n",
		summary.RunID,
		summary.SourceFile,
		summary.Mode,
		summary.DryRun,
		summary.StartTime.Format(time.DateTime),
		summary.EndTime.Format(time.DateTime),
		duration.String(),
		summary.TotalInvoices,
		summary.Rendered,
		summary.Failed,
		summary.OrphanLines,
		summary.Warnings,
		summary.Pages)
	if err != nil {
		return err
	}

	if len(summary.GeneratedFiles) > 0 {
		io.WriteString(w, "Generated Files:\n")
		io.WriteString(w, "--------------------------------------------------------------------------------\n")
		for _, f := range summary.GeneratedFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
		io.WriteString(w, "\n")
	}
	if summary.ReportFile != "" {
		fmt.Fprintf(w, "Report: %s\n\n", summary.ReportFile)
	}

	_, err = io.WriteString(w, "================================================================================\n"+
		"End of Summary\n")
	return err
}
