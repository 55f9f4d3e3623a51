package report

import (
	"io"

	"github.com/nao1215/credaudit/internal/model"
)

// Writer defines the interface for report output.
// Implementations write audit results in various formats.
type Writer interface {
	// Write outputs the report of one target to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.AuditReport) (int, error)

	// WriteSummary outputs a roll-up across several audited targets.
	WriteSummary(reports []*model.AuditReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Our Writer interface writes reports, not raw bytes, so io.MultiWriter
// does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.AuditReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(reports []*model.AuditReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Option configures a report writer. Options that do not apply to a
// format are ignored by its writer.
type Option func(*settings)

type settings struct {
	// verbose adds per-account detail, including compliant accounts.
	verbose bool

	// exposeCleartext renders matched cleartexts.
	exposeCleartext bool

	// pretty enables indented JSON.
	pretty bool
}

// WithVerbose enables verbose output with per-account detail.
func WithVerbose(verbose bool) Option {
	return func(s *settings) {
		s.verbose = verbose
	}
}

// WithExposeCleartext renders the matched weak cleartext of each weak account.
func WithExposeCleartext(expose bool) Option {
	return func(s *settings) {
		s.exposeCleartext = expose
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() Option {
	return func(s *settings) {
		s.pretty = true
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
	settings
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	b := baseWriter{output: output}
	for _, opt := range opts {
		opt(&b.settings)
	}
	return b
}

// blankLabel is shown instead of a source for blank credential matches.
const blankLabel = "<blank>"

// source returns what may be shown as the match source of r.
// It is empty when the source must stay hidden.
func (b baseWriter) source(r model.Result) string {
	if r.Blank {
		return blankLabel
	}
	if b.exposeCleartext {
		return r.Source
	}
	return r.Redact().Source
}

// view returns the report as it may be serialized. Compliant accounts are
// listed only in verbose mode. The report itself is never modified.
func (b baseWriter) view(report *model.AuditReport) *model.AuditReport {
	out := report
	if !b.exposeCleartext {
		out = report.Redacted()
	}
	if b.verbose {
		return out
	}

	if out == report {
		cp := *report
		out = &cp
	}
	out.Results = findings(out.Results)
	return out
}

// findings returns the results that are not compliant, in input order.
func findings(results []model.Result) []model.Result {
	out := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.Classification != model.ClassCompliant {
			out = append(out, r)
		}
	}
	return out
}

// SummaryRow is the per-target line of a batch summary.
type SummaryRow struct {
	Target   string         `json:"target"`
	RunID    string         `json:"run_id"`
	Counters model.Counters `json:"counters"`
	Error    string         `json:"error,omitempty"`
}

// Summary rolls up several audit reports.
type Summary struct {
	Targets []SummaryRow   `json:"targets"`
	Total   model.Counters `json:"total"`
	Failed  int            `json:"failed"`
}

// Summarize builds a Summary over reports in the given order.
// Every target shares one index, so wordlist totals are taken from the
// first report that carries them rather than summed.
func Summarize(reports []*model.AuditReport) Summary {
	s := Summary{Targets: make([]SummaryRow, 0, len(reports))}
	wordlistSeen := false
	for _, r := range reports {
		s.Targets = append(s.Targets, SummaryRow{
			Target:   r.Target,
			RunID:    r.ID,
			Counters: r.Counters,
			Error:    r.ErrorMessage,
		})
		if r.ErrorMessage != "" {
			s.Failed++
		}

		c := r.Counters
		if wordlistSeen || c.WordlistEntries == 0 {
			c.WordlistEntries, c.WordlistDuplicates, c.EmptyLinesSkipped, c.SourcesFailed = 0, 0, 0, 0
		} else {
			wordlistSeen = true
		}
		s.Total.Add(c)
	}
	return s
}
