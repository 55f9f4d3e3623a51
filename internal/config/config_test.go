package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults should be intentional, so they are pinned here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("linked check enabled by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.CheckLinked {
			t.Error("expected CheckLinked to be true")
		}
	})

	t.Run("default LinkedSuffix is -a", func(t *testing.T) {
		t.Parallel()
		if cfg.LinkedSuffix != "-a" {
			t.Errorf("expected LinkedSuffix '-a', got %q", cfg.LinkedSuffix)
		}
	})

	t.Run("default LinkedTimeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.LinkedTimeout != 5*time.Second {
			t.Errorf("expected LinkedTimeout 5s, got %v", cfg.LinkedTimeout)
		}
	})

	t.Run("default Concurrency is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 4 {
			t.Errorf("expected Concurrency 4, got %d", cfg.Concurrency)
		}
	})

	t.Run("cleartext hidden by default", func(t *testing.T) {
		t.Parallel()
		if cfg.ExposeCleartext {
			t.Error("expected ExposeCleartext to be false")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"corp.ntds"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config returns nil", func(*Config) {}, nil},
		{"empty targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative batch size", func(c *Config) { c.BatchSize = -1 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"negative linked timeout", func(c *Config) { c.LinkedTimeout = -time.Second }, ErrInvalidLinkedTimeout},
		{"zero linked timeout is valid", func(c *Config) { c.LinkedTimeout = 0 }, nil},
		{"linked check without suffix", func(c *Config) { c.LinkedSuffix = "" }, ErrEmptyLinkedSuffix},
		{"no suffix needed when check disabled", func(c *Config) { c.LinkedSuffix, c.CheckLinked = "", false }, nil},
		{"bad exclude pattern", func(c *Config) { c.Exclude = []string{"svc_[a"} }, ErrInvalidExcludePattern},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestEffectiveWordlists tests the default wordlist fallback.
func TestEffectiveWordlists(t *testing.T) {
	t.Parallel()

	t.Run("default when nothing configured", func(t *testing.T) {
		t.Parallel()
		got := NewConfig().EffectiveWordlists()
		if len(got) != 1 || got[0] != DefaultWordlist {
			t.Errorf("expected [%s], got %v", DefaultWordlist, got)
		}
	})

	t.Run("no default when only hash lists configured", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.HashLists = []string{"breach.txt"}
		if got := cfg.EffectiveWordlists(); len(got) != 0 {
			t.Errorf("expected no cleartext wordlists, got %v", got)
		}
	})
}

// TestLoadConfigFile tests loading the YAML policy file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("parses policy and resolves relative paths", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		content := `wordlists:
  - lists/common.txt
  - /abs/extra.txt
hashLists:
  - breach/*.txt
linked:
  enabled: false
  suffix: ".adm"
  timeout: 2s
exclude:
  - "svc_*"
exposeCleartext: true
`
		path := filepath.Join(dir, ".credaudit")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.Wordlists[0] != filepath.Join(dir, "lists/common.txt") {
			t.Errorf("expected relative wordlist resolved, got %q", f.Wordlists[0])
		}
		if f.Wordlists[1] != "/abs/extra.txt" {
			t.Errorf("expected absolute wordlist kept, got %q", f.Wordlists[1])
		}
		if f.HashLists[0] != filepath.Join(dir, "breach/*.txt") {
			t.Errorf("expected hash list glob resolved, got %q", f.HashLists[0])
		}
		if f.Linked.Enabled == nil || *f.Linked.Enabled {
			t.Error("expected linked.enabled false")
		}
		if f.Linked.Suffix != ".adm" {
			t.Errorf("expected suffix .adm, got %q", f.Linked.Suffix)
		}
		if f.Linked.Timeout != 2*time.Second {
			t.Errorf("expected timeout 2s, got %v", f.Linked.Timeout)
		}
		if !f.ExposeCleartext {
			t.Error("expected exposeCleartext true")
		}
	})

	t.Run("invalid YAML returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("wordlists: [unclosed"), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestApplyFile tests merging policy file values into the CLI config.
func TestApplyFile(t *testing.T) {
	t.Parallel()

	disabled := false
	file := &File{
		Wordlists: []string{"file.txt"},
		HashLists: []string{"hashes.txt"},
		Linked:    LinkedPolicy{Enabled: &disabled, Suffix: ".adm", Timeout: time.Second},
		Exclude:   []string{"svc_*"},
	}

	t.Run("file fills unset values", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(file)

		if len(cfg.Wordlists) != 1 || cfg.Wordlists[0] != "file.txt" {
			t.Errorf("expected file wordlist, got %v", cfg.Wordlists)
		}
		if cfg.CheckLinked {
			t.Error("expected linked check disabled by file")
		}
		if cfg.LinkedSuffix != ".adm" {
			t.Errorf("expected suffix .adm, got %q", cfg.LinkedSuffix)
		}
		if cfg.LinkedTimeout != time.Second {
			t.Errorf("expected timeout 1s, got %v", cfg.LinkedTimeout)
		}
		if cfg.Policy != file {
			t.Error("expected Policy to be recorded")
		}
	})

	t.Run("flags win over file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Wordlists = []string{"flag.txt"}
		cfg.LinkedSuffix = "_admin"
		cfg.Exclude = []string{"krbtgt"}
		cfg.ApplyFile(file)

		if len(cfg.Wordlists) != 1 || cfg.Wordlists[0] != "flag.txt" {
			t.Errorf("expected flag wordlist only, got %v", cfg.Wordlists)
		}
		if cfg.LinkedSuffix != "_admin" {
			t.Errorf("expected flag suffix, got %q", cfg.LinkedSuffix)
		}
		if len(cfg.Exclude) != 2 {
			t.Errorf("expected exclude patterns to accumulate, got %v", cfg.Exclude)
		}
	})

	t.Run("nil file is a no-op", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(nil)
		if cfg.Policy != nil {
			t.Error("expected no policy")
		}
	})
}

// TestFindConfigFile tests explicit path handling.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "policy.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})
}
