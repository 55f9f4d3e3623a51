package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default policy file name.
const DefaultConfigFile = ".credaudit"

// ErrConfigNotFound is returned when the policy file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LinkedPolicy configures the linked-identity check.
type LinkedPolicy struct {
	// Enabled turns the check on or off. Nil leaves the CLI setting alone.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Suffix names the linked identity, e.g. "-a" or ".adm".
	Suffix string `yaml:"suffix,omitempty"`

	// Timeout bounds each lookup, e.g. "5s".
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// File represents the structure of the .credaudit policy file.
type File struct {
	// Wordlists are cleartext wordlist paths or globs.
	Wordlists []string `yaml:"wordlists,omitempty"`

	// HashLists are precomputed hash list paths or globs.
	HashLists []string `yaml:"hashLists,omitempty"`

	// Linked configures the linked-identity check.
	Linked LinkedPolicy `yaml:"linked,omitempty"`

	// Exclude lists identifier glob patterns to leave out of the audit.
	Exclude []string `yaml:"exclude,omitempty"`

	// ExposeCleartext renders matched cleartexts in reports.
	ExposeCleartext bool `yaml:"exposeCleartext,omitempty"`
}

// LoadConfigFile loads a policy file from path.
// If the file does not exist, it returns ErrConfigNotFound.
// Relative wordlist paths are resolved against the file's directory.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	cf.Wordlists = resolvePaths(base, cf.Wordlists)
	cf.HashLists = resolvePaths(base, cf.HashLists)

	return &cf, nil
}

func resolvePaths(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(base, p)
	}
	return out
}

// FindConfigFile searches for the policy file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .credaudit in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .credaudit in the user's home directory
//
// Returns the path to the file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// ApplyFile merges policy file settings into c.
//
// Values given on the command line win: wordlists from the file are used
// only when none were passed as flags, and scalar settings are taken from
// the file only while c still holds the default. Exclude patterns and hash
// lists accumulate.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.Policy = f

	if len(c.Wordlists) == 0 {
		c.Wordlists = append(c.Wordlists, f.Wordlists...)
	}
	c.HashLists = append(c.HashLists, f.HashLists...)
	c.Exclude = append(c.Exclude, f.Exclude...)

	if f.Linked.Enabled != nil {
		c.CheckLinked = *f.Linked.Enabled
	}
	if f.Linked.Suffix != "" && c.LinkedSuffix == DefaultLinkedSuffix {
		c.LinkedSuffix = f.Linked.Suffix
	}
	if f.Linked.Timeout != 0 && c.LinkedTimeout == DefaultLinkedTimeout {
		c.LinkedTimeout = f.Linked.Timeout
	}
	if f.ExposeCleartext {
		c.ExposeCleartext = true
	}
}
