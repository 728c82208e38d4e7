// =============================================================================
// JPK to PDF - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (jpk2pdf)
//   ├── renderCmd  (jpk2pdf render <file.xml>)
//   ├── inspectCmd (jpk2pdf inspect <file.xml>)
//   ├── serveCmd   (jpk2pdf serve)
//   └── versionCmd (jpk2pdf version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file from the working directory, if present
//   2. Loads the configuration file (--config), falling back to defaults
//   3. Sets up logging (--verbose forces debug level)
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/jpk-to-pdf/internal/config"
	"github.com/ginjaninja78/jpk-to-pdf/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// mainConfig and logger are initialized by the root command before any
// subcommand runs.
var (
	mainConfig *config.MainConfig
	logger     logging.Logger = logging.Discard
	logCloser  io.Closer
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jpk2pdf",
	Short: "JPK to PDF - Render invoices from a JPK_FA export as printable PDFs",
	Long: `jpk2pdf turns a JPK_FA export (the Polish standard audit file for invoices)
into printable A4 VAT invoices.

Key Features:
  - One PDF per invoice, or all invoices in one PDF
  - Seller identity taken from the declaration or from the invoices
  - Validation with a preview of what will be printed
  - Optional XLSX batch report
  - A small web form for uploading exports

Example Usage:
  jpk2pdf render jpk.xml                     # One PDF per invoice in ./faktury
  jpk2pdf render jpk.xml --mode single       # All invoices in Faktury.pdf
  jpk2pdf inspect jpk.xml                    # Show what would be printed
  jpk2pdf serve --listen :8080               # Start the upload form`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd.ErrOrStderr())
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
			logCloser = nil
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file; missing file means defaults",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initialize loads the environment, the configuration and the logger.
func initialize(stderr io.Writer) error {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	mainConfig = cfg

	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}

	out := stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		logCloser = f
	}
	logger = logging.New(out, level)
	logger.Debug("Using config file %s", cfgFile)
	return nil
}
