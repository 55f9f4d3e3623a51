package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "credaudit"

	// DefaultWordlist is the wordlist loaded when no source is configured.
	DefaultWordlist = "passwords.txt"

	// DefaultLinkedSuffix names the privileged twin of an account, so
	// "alice" is paired with "alice-a".
	DefaultLinkedSuffix = "-a"

	// DefaultLinkedTimeout bounds each linked-identity lookup.
	DefaultLinkedTimeout = 5 * time.Second

	// DefaultConcurrency is the number of accounts classified in parallel.
	DefaultConcurrency = 4

	// DefaultBatchSize is the number of account dumps audited concurrently.
	DefaultBatchSize = 2

	// DefaultLogFormat is the log output format.
	DefaultLogFormat = "text"
)

// Config holds all configuration options for an audit run.
// It is populated from CLI flags and the policy file, then passed through
// the application rather than kept in global state.
type Config struct {
	// Targets are the account dump files to audit.
	Targets []string

	// Wordlists are cleartext wordlist paths or doublestar globs.
	Wordlists []string

	// HashLists are precomputed hash list paths or globs.
	HashLists []string

	// CheckLinked enables the linked-identity duplicate check.
	CheckLinked bool

	// LinkedSuffix is appended to an identifier to name its linked identity.
	LinkedSuffix string

	// LinkedTimeout bounds each linked-identity lookup. Zero disables the bound.
	LinkedTimeout time.Duration

	// Exclude lists identifier glob patterns removed from the scan stream.
	Exclude []string

	// Concurrency is the number of accounts classified in parallel.
	Concurrency int

	// BatchSize is the number of targets audited concurrently.
	BatchSize int

	// Verbose enables Debug logging and per-account detail in reports.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// ExposeCleartext renders matched weak cleartexts in reports and exports.
	ExposeCleartext bool

	// ExportFile receives one CSV record per weak account when set.
	ExportFile string

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// FailOnWeak makes the run fail when any weak credential is found.
	FailOnWeak bool

	// ConfigFilePath is the policy file path given with --config.
	ConfigFilePath string

	// Policy holds the policy file contents, if one was loaded.
	Policy *File

	// DBDir is the directory holding the audit history database.
	DBDir string

	// SaveToDB indicates whether audit results are stored in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		CheckLinked:   true,
		LinkedSuffix:  DefaultLinkedSuffix,
		LinkedTimeout: DefaultLinkedTimeout,
		Concurrency:   DefaultConcurrency,
		BatchSize:     DefaultBatchSize,
		LogFormat:     DefaultLogFormat,
	}
}

// XDGDataDir returns the XDG data directory for credaudit.
// On Linux: ~/.local/share/credaudit
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for credaudit.
// On Linux: ~/.config/credaudit
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// EffectiveWordlists returns the configured cleartext wordlists, or the
// default wordlist when neither wordlists nor hash lists are configured.
func (c *Config) EffectiveWordlists() []string {
	if len(c.Wordlists) == 0 && len(c.HashLists) == 0 {
		return []string{DefaultWordlist}
	}
	return c.Wordlists
}

// Validate checks if the configuration is valid.
// It returns the first error found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.LinkedTimeout < 0 {
		return ErrInvalidLinkedTimeout
	}

	if c.CheckLinked && c.LinkedSuffix == "" {
		return ErrEmptyLinkedSuffix
	}

	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", ErrInvalidExcludePattern, pattern)
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}
