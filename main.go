// =============================================================================
// JPK to PDF - Main Entry Point
// =============================================================================
//
// USAGE:
//   jpk2pdf render <file.xml>   - Render invoices to PDF
//   jpk2pdf inspect <file.xml>  - Preview seller, invoices and findings
//   jpk2pdf serve               - Start the upload web form
//   jpk2pdf version             - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, validation, layout and rendering
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/jpk-to-pdf/cmd"
)

func main() {
	cmd.Execute()
}
