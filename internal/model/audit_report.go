package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceStats describes how one wordlist source contributed to the index.
type SourceStats struct {
	Name              string `json:"name"`
	HashList          bool   `json:"hash_list,omitempty"`
	LinesSeen         int    `json:"lines_seen"`
	EmptyLinesSkipped int    `json:"empty_lines_skipped"`
	EntriesAdded      int    `json:"entries_added"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Malformed         int    `json:"malformed,omitempty"`
	Error             string `json:"error,omitempty"`
}

// AccountSourceStats describes how the account stream of a target was
// obtained: how many records were read and why some were left out.
type AccountSourceStats struct {
	Lines           int `json:"lines"`
	Accounts        int `json:"accounts"`
	Machine         int `json:"machine"`
	History         int `json:"history"`
	Disabled        int `json:"disabled"`
	Excluded        int `json:"excluded"`
	Unparseable     int `json:"unparseable"`
	DuplicateRecord int `json:"duplicate_records"`
}

// Filtered returns the number of parsed records kept out of the scan stream.
func (s AccountSourceStats) Filtered() int {
	return s.Machine + s.History + s.Disabled + s.Excluded + s.DuplicateRecord
}

// AuditReport is the result of auditing one account source (target).
type AuditReport struct {
	// ID uniquely identifies this audit run.
	ID string `json:"id"`

	// Target names the account source, typically a dump file path.
	Target string `json:"target"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`

	// IndexEntries is the number of distinct weak hashes, sentinel included.
	IndexEntries int `json:"index_entries"`

	// IndexFingerprint identifies the set of weak hashes the audit ran against.
	IndexFingerprint string `json:"index_fingerprint"`

	// AccountSource describes the account stream of Target.
	AccountSource AccountSourceStats `json:"account_source"`

	// Sources lists per-wordlist load statistics.
	Sources []SourceStats `json:"sources"`

	Counters Counters `json:"counters"`

	// Results holds one entry per scanned account, in input order.
	Results []Result `json:"results"`

	// Error holds the error that stopped the audit, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Accounts is the account stream loaded for this target.
	Accounts []AccountRecord `json:"-"`

	// Directory resolves linked identities for this target. May be nil.
	Directory AccountLookup `json:"-"`
}

// NewAuditReport creates an empty report for target.
func NewAuditReport(target string) *AuditReport {
	return &AuditReport{
		ID:             uuid.NewString(),
		Target:         target,
		StartedAt:      time.Now(),
		Sources:        make([]SourceStats, 0),
		Results:        make([]Result, 0),
		PerformedSteps: make([]string, 0),
	}
}

// Finish stamps the completion time.
func (r *AuditReport) Finish() {
	r.CompletedAt = time.Now()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)
}

// WeakResults returns the Weak and WeakWithLinkedDuplicate results in input order.
func (r *AuditReport) WeakResults() []Result {
	weak := make([]Result, 0, r.Counters.Weak)
	for _, res := range r.Results {
		if res.Classification.IsWeak() {
			weak = append(weak, res)
		}
	}
	return weak
}

// ResultsByClass returns the results with the given classification.
func (r *AuditReport) ResultsByClass(c Classification) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Classification == c {
			out = append(out, res)
		}
	}
	return out
}

// HasWeak reports whether any weak credential was found.
func (r *AuditReport) HasWeak() bool {
	return r.Counters.Weak > 0
}

// Redacted returns a copy of the report with every matched cleartext removed.
// The copy is safe to persist.
func (r *AuditReport) Redacted() *AuditReport {
	cp := *r
	cp.Results = make([]Result, len(r.Results))
	for i, res := range r.Results {
		cp.Results[i] = res.Redact()
	}
	cp.Sources = append([]SourceStats(nil), r.Sources...)
	cp.Accounts = nil
	cp.Directory = nil
	return &cp
}
