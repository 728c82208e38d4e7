// =============================================================================
// JPK to PDF - Configuration Module
// =============================================================================
//
// This module loads and saves the application configuration.
//
// SOURCES (later ones win):
//   1. Built-in defaults (DefaultMainConfig)
//   2. The YAML file (config.yaml, or the path given with --config)
//   3. Environment variables (JPK2PDF_*), optionally loaded from a .env file
//   4. Command-line flags (applied by the cmd package)
//
// A missing config file is not an error: the defaults are used. The web form
// writes the last used bank account back with SaveBankAccount, which touches
// only that key.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
	"gopkg.in/yaml.v3"
)

// DefaultBankAccount is printed when no account is configured.
const DefaultBankAccount = "Santander (SWIFT: WBKPPLPP), 84 1090 1098 0000 0001 5295 9691"

// Environment variables that override file settings.
const (
	EnvOutputDir   = "JPK2PDF_OUTPUT_DIR"
	EnvBankAccount = "JPK2PDF_BANK_ACCOUNT"
	EnvMode        = "JPK2PDF_MODE"
	EnvLogLevel    = "JPK2PDF_LOG_LEVEL"
	EnvListen      = "JPK2PDF_LISTEN"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where generated documents, logs and reports are written.
	// Default: "./faktury"
	OutputDir string `yaml:"output_dir"`

	// BankAccount is the seller bank account printed on every invoice.
	BankAccount string `yaml:"bank_account"`

	// Mode is "separate" (one file per invoice) or "single" (one file).
	// Default: "separate"
	Mode string `yaml:"mode"`

	// Pagination is "continue" (long tables flow onto extra pages) or "none".
	// Default: "continue"
	Pagination string `yaml:"pagination"`

	// Fonts overrides the embedded fonts with TTF files.
	Fonts FontsConfig `yaml:"fonts"`

	// WriteReport adds an XLSX batch report to every run.
	// Default: false
	WriteReport bool `yaml:"write_report"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds how many invoices are rendered at once in
	// separate mode. Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError skips invoices that cannot be rendered instead of
	// aborting the batch.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFile receives log output; empty means stderr.
	LogFile string `yaml:"log_file"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	Server ServerConfig `yaml:"server"`
}

// FontsConfig holds optional TTF paths. Empty paths select the embedded fonts.
type FontsConfig struct {
	Regular string `yaml:"regular,omitempty"`
	Bold    string `yaml:"bold,omitempty"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	// Listen is the TCP address of the HTTP server.
	// Default: ":8080"
	Listen string `yaml:"listen"`

	// MaxUploadMB limits the size of uploaded JPK files.
	// Default: 32
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// DefaultMainConfig returns the built-in configuration.
func DefaultMainConfig() *MainConfig {
	return &MainConfig{
		OutputDir:       "./faktury",
		BankAccount:     DefaultBankAccount,
		Mode:            string(render.ModeSeparate),
		Pagination:      string(render.PaginateContinue),
		MaxConcurrency:  4,
		ContinueOnError: true,
		LogLevel:        "info",
		Server: ServerConfig{
			Listen:      ":8080",
			MaxUploadMB: 32,
		},
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file, then applies
// environment overrides.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. It may not exist.
//
// RETURNS:
//   - The resolved configuration.
//   - An error if the file exists but cannot be read or parsed, or if a value
//     is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := DefaultMainConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Unmarshalling over the defaults keeps every key the file omits.
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)
	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// SaveBankAccount sets bank_account in the file at configPath and leaves
// every other key, and its comments, as they are. Environment and flag
// overrides are never written. A missing file is created with just that key.
func SaveBankAccount(configPath, account string) error {
	var doc yaml.Node
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config file %s is not a mapping", configPath)
	}
	setScalar(root, "bank_account", account)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setScalar replaces or appends key in a mapping node. An existing value node
// is rewritten in place so its comments survive.
func setScalar(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			v := m.Content[i+1]
			v.Kind, v.Tag, v.Style, v.Value, v.Content = yaml.ScalarNode, "!!str", 0, value, nil
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

func applyEnvOverrides(config *MainConfig) {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvOutputDir, &config.OutputDir},
		{EnvBankAccount, &config.BankAccount},
		{EnvMode, &config.Mode},
		{EnvLogLevel, &config.LogLevel},
		{EnvListen, &config.Server.Listen},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
		}
	}
}

// applyMainConfigDefaults restores defaults for values set to empty or zero
// in the file.
func applyMainConfigDefaults(config *MainConfig) {
	defaults := DefaultMainConfig()
	if config.OutputDir == "" {
		config.OutputDir = defaults.OutputDir
	}
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.Pagination == "" {
		config.Pagination = defaults.Pagination
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Server.Listen == "" {
		config.Server.Listen = defaults.Server.Listen
	}
	if config.Server.MaxUploadMB <= 0 {
		config.Server.MaxUploadMB = defaults.Server.MaxUploadMB
	}
}

// validateMainConfig checks the enumerated settings.
func validateMainConfig(config *MainConfig) error {
	if _, err := render.ParseMode(config.Mode); err != nil {
		return err
	}
	if _, err := render.ParsePagination(config.Pagination); err != nil {
		return err
	}
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// RenderMode returns the validated render mode.
func (c *MainConfig) RenderMode() render.Mode {
	return render.Mode(c.Mode)
}

// RenderPagination returns the validated pagination policy.
func (c *MainConfig) RenderPagination() render.Pagination {
	return render.Pagination(c.Pagination)
}

// MaxUploadBytes returns the upload limit of the serve command in bytes.
func (c *MainConfig) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
