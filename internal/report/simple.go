package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/credaudit/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting. Plain ASCII is used so output can be piped to files.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...Option) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.AuditReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeSources(&sb, report)
	w.writeWeak(&sb, report)
	w.writeOtherFindings(&sb, report)
	if w.verbose {
		w.writeAllAccounts(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs a table of per-target counters and the totals.
func (w *SimpleWriter) WriteSummary(reports []*model.AuditReport) (int, error) {
	var sb strings.Builder
	summary := Summarize(reports)

	writeSection(&sb, "BATCH SUMMARY")
	sb.WriteString(fmt.Sprintf("  %-40s %8s %6s %6s %9s\n", "TARGET", "SCANNED", "WEAK", "NULL", "MALFORMED"))
	for _, row := range summary.Targets {
		if row.Error != "" {
			sb.WriteString(fmt.Sprintf("  %-40s ERROR - %s\n", row.Target, row.Error))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-40s %8d %6d %6d %9d\n",
			row.Target, row.Counters.AccountsScanned, row.Counters.Weak,
			row.Counters.NullCredential, row.Counters.Malformed))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Targets:          %d (%d failed)\n", len(summary.Targets), summary.Failed))
	sb.WriteString(fmt.Sprintf("  Accounts scanned: %d\n", summary.Total.AccountsScanned))
	sb.WriteString(fmt.Sprintf("  Weak:             %d\n", summary.Total.Weak))
	sb.WriteString(fmt.Sprintf("  Linked duplicate: %d\n", summary.Total.LinkedDuplicates))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a dashed section heading.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with audit information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.AuditReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                  CREDENTIAL COMPLIANCE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Target:        %s\n", report.Target))
	sb.WriteString(fmt.Sprintf("Run ID:        %s\n", report.ID))
	sb.WriteString(fmt.Sprintf("Audit Date:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:      %s\n", report.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Weak Hashes:   %d (fingerprint %s)\n", report.IndexEntries, report.IndexFingerprint))

	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:        ERROR - %s\n", report.ErrorMessage))
	} else {
		sb.WriteString("Status:        Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the classification counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.AuditReport) {
	writeSection(sb, "SUMMARY")

	c := report.Counters
	sb.WriteString(fmt.Sprintf("  Accounts scanned:         %d\n", c.AccountsScanned))
	sb.WriteString(fmt.Sprintf("  Compliant:                %d\n", c.Compliant()))
	sb.WriteString(fmt.Sprintf("  Weak:                     %d\n", c.Weak))
	sb.WriteString(fmt.Sprintf("    with linked duplicate:  %d\n", c.LinkedDuplicates))
	sb.WriteString(fmt.Sprintf("  Null credential:          %d\n", c.NullCredential))
	sb.WriteString(fmt.Sprintf("  Malformed:                %d\n", c.Malformed))
	sb.WriteString("\n")
}

// writeSources writes the wordlist load statistics.
func (w *SimpleWriter) writeSources(sb *strings.Builder, report *model.AuditReport) {
	writeSection(sb, "WORDLISTS")

	for _, src := range report.Sources {
		if src.Error != "" {
			sb.WriteString(fmt.Sprintf("  [x] %s: %s\n", src.Name, src.Error))
			continue
		}
		kind := "wordlist"
		if src.HashList {
			kind = "hash list"
		}
		sb.WriteString(fmt.Sprintf("  [+] %s (%s): %d added, %d duplicate, %d empty",
			src.Name, kind, src.EntriesAdded, src.DuplicatesSkipped, src.EmptyLinesSkipped))
		if src.Malformed > 0 {
			sb.WriteString(fmt.Sprintf(", %d malformed", src.Malformed))
		}
		sb.WriteString("\n")
	}

	c := report.Counters
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Entries loaded:      %d\n", c.WordlistEntries))
	sb.WriteString(fmt.Sprintf("  Duplicates skipped:  %d\n", c.WordlistDuplicates))
	sb.WriteString(fmt.Sprintf("  Empty lines skipped: %d\n", c.EmptyLinesSkipped))
	if c.SourcesFailed > 0 {
		sb.WriteString(fmt.Sprintf("  Sources failed:      %d\n", c.SourcesFailed))
	}
	sb.WriteString("\n")
}

// writeWeak writes every weak account.
func (w *SimpleWriter) writeWeak(sb *strings.Builder, report *model.AuditReport) {
	weak := report.WeakResults()
	if len(weak) == 0 {
		return
	}

	writeSection(sb, "WEAK CREDENTIALS")

	for _, r := range weak {
		indicator := "!"
		if r.Classification == model.ClassWeakWithLinkedDuplicate {
			indicator = "!!"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", indicator, r.Identifier))

		source := w.source(r)
		if source == "" {
			source = "[hidden]"
		}
		sb.WriteString(fmt.Sprintf("    Source: %s\n", source))
		if r.LinkedIdentifier != "" {
			sb.WriteString(fmt.Sprintf("    Linked: %s shares the same credential\n", r.LinkedIdentifier))
		}
	}
	sb.WriteString("\n")
}

// writeOtherFindings writes null-credential and malformed accounts.
func (w *SimpleWriter) writeOtherFindings(sb *strings.Builder, report *model.AuditReport) {
	null := report.ResultsByClass(model.ClassNullCredential)
	malformed := report.ResultsByClass(model.ClassMalformed)
	if len(null) == 0 && len(malformed) == 0 {
		return
	}

	writeSection(sb, "OTHER FINDINGS")

	for _, r := range null {
		sb.WriteString(fmt.Sprintf("  [-] %s: no credential hash\n", r.Identifier))
	}
	for _, r := range malformed {
		sb.WriteString(fmt.Sprintf("  [?] %s: malformed credential hash\n", r.Identifier))
	}
	sb.WriteString("\n")
}

// writeAllAccounts writes one line per scanned account.
func (w *SimpleWriter) writeAllAccounts(sb *strings.Builder, report *model.AuditReport) {
	writeSection(sb, "ALL ACCOUNTS")

	for _, r := range report.Results {
		sb.WriteString(fmt.Sprintf("  %-40s %s\n", r.Identifier, r.Classification))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by credaudit\n")
	sb.WriteString("https://github.com/nao1215/credaudit\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
