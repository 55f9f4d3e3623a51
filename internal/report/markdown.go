package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/credaudit/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, for example as
// an attachment to a remediation ticket.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.AuditReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeSources(md, report)
	w.writeWeak(md, report)
	w.writeOtherFindings(md, report)
	if w.verbose {
		w.writeAllAccounts(md, report)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs a per-target table and the totals in Markdown format.
func (w *MarkdownWriter) WriteSummary(reports []*model.AuditReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(reports)

	md.H1("Credential Compliance Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Targets)+1)
	for _, row := range summary.Targets {
		if row.Error != "" {
			rows = append(rows, []string{"`" + row.Target + "`", "❌ " + row.Error, "-", "-", "-"})
			continue
		}
		rows = append(rows, []string{
			"`" + row.Target + "`",
			strconv.Itoa(row.Counters.AccountsScanned),
			strconv.Itoa(row.Counters.Weak),
			strconv.Itoa(row.Counters.NullCredential),
			strconv.Itoa(row.Counters.Malformed),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(summary.Total.AccountsScanned) + "**",
		"**" + strconv.Itoa(summary.Total.Weak) + "**",
		"**" + strconv.Itoa(summary.Total.NullCredential) + "**",
		"**" + strconv.Itoa(summary.Total.Malformed) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Target", "Scanned", "Weak", "Null", "Malformed"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeAlert(md, summary.Total)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with audit information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.AuditReport) {
	md.H1("Credential Compliance Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Run ID", "`" + report.ID + "`"},
			{"Audit Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Weak Hashes", strconv.Itoa(report.IndexEntries)},
			{"Index Fingerprint", "`" + report.IndexFingerprint + "`"},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.AuditReport) string {
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeSummary writes the classification summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.AuditReport) {
	md.H2("Summary")
	md.PlainText("")

	c := report.Counters
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Count"},
		Rows: [][]string{
			{"🟢 Compliant", strconv.Itoa(c.Compliant())},
			{"🔴 Weak", strconv.Itoa(c.Weak)},
			{"🟠 Weak, linked duplicate", strconv.Itoa(c.LinkedDuplicates)},
			{"⚪ Null credential", strconv.Itoa(c.NullCredential)},
			{"🟡 Malformed", strconv.Itoa(c.Malformed)},
			{"**Scanned**", "**" + strconv.Itoa(c.AccountsScanned) + "**"},
		},
	})
	md.PlainText("")

	if c.AccountsScanned > 0 {
		w.writePieChart(md, c)
	}

	w.writeAlert(md, c)
}

// writePieChart writes a mermaid pie chart of the classification distribution.
// Linked duplicates are shown as their own slice and taken out of Weak so
// that the slices add up to the scanned total.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c model.Counters) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Account Classification"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		count int
	}{
		{"Compliant", c.Compliant()},
		{"Weak", c.Weak - c.LinkedDuplicates},
		{"Weak (linked duplicate)", c.LinkedDuplicates},
		{"Null credential", c.NullCredential},
		{"Malformed", c.Malformed},
	}
	for _, s := range slices {
		if s.count > 0 {
			chart.LabelAndIntValue(s.label, uint64(s.count)) //nolint:gosec // count is positive
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the counters.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, c model.Counters) {
	switch {
	case c.LinkedDuplicates > 0:
		md.Cautionf(
			"%d account(s) share a weak credential with their linked privileged identity.",
			c.LinkedDuplicates,
		)
	case c.Weak > 0:
		md.Warningf(
			"%d account(s) use a known-weak credential and should be reset.",
			c.Weak,
		)
	case c.NullCredential > 0:
		md.Importantf(
			"%d account(s) have no credential hash.",
			c.NullCredential,
		)
	case c.Malformed > 0:
		md.Note("Some credential hashes could not be parsed.")
	default:
		md.Tip("No weak credentials detected.")
	}
	md.PlainText("")
}

// writeSources writes the wordlist load statistics.
func (w *MarkdownWriter) writeSources(md *markdown.Markdown, report *model.AuditReport) {
	md.H2("Wordlists")
	md.PlainText("")

	if len(report.Sources) == 0 {
		md.PlainText("No wordlist sources recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Sources))
	for i, src := range report.Sources {
		status := "✅"
		if src.Error != "" {
			status = "❌ " + truncateString(src.Error, 60)
		}
		kind := "wordlist"
		if src.HashList {
			kind = "hash list"
		}
		rows[i] = []string{
			"`" + src.Name + "`",
			kind,
			strconv.Itoa(src.EntriesAdded),
			strconv.Itoa(src.DuplicatesSkipped),
			strconv.Itoa(src.EmptyLinesSkipped),
			strconv.Itoa(src.Malformed),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Kind", "Added", "Duplicates", "Empty", "Malformed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeWeak writes a table of weak accounts.
func (w *MarkdownWriter) writeWeak(md *markdown.Markdown, report *model.AuditReport) {
	md.H2("Weak Credentials")
	md.PlainText("")

	weak := report.WeakResults()
	if len(weak) == 0 {
		md.PlainText("No weak credentials detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(weak))
	for i, r := range weak {
		source := w.source(r)
		if source == "" {
			source = "_hidden_"
		} else {
			source = "`" + source + "`"
		}
		linked := r.LinkedIdentifier
		if linked == "" {
			linked = "-"
		}
		rows[i] = []string{"`" + r.Identifier + "`", r.Classification.String(), linked, source}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Account", "Classification", "Linked Identity", "Source"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeOtherFindings lists null-credential and malformed accounts.
func (w *MarkdownWriter) writeOtherFindings(md *markdown.Markdown, report *model.AuditReport) {
	null := report.ResultsByClass(model.ClassNullCredential)
	malformed := report.ResultsByClass(model.ClassMalformed)
	if len(null) == 0 && len(malformed) == 0 {
		return
	}

	md.H2("Other Findings")
	md.PlainText("")

	if len(null) > 0 {
		md.PlainText("### ⚪ Null credential")
		md.PlainText("")
		md.BulletList(identifiers(null)...)
		md.PlainText("")
	}
	if len(malformed) > 0 {
		md.PlainText("### 🟡 Malformed")
		md.PlainText("")
		md.BulletList(identifiers(malformed)...)
		md.PlainText("")
	}
}

// writeAllAccounts writes every classification in a collapsible block.
func (w *MarkdownWriter) writeAllAccounts(md *markdown.Markdown, report *model.AuditReport) {
	md.H2("All Accounts")
	md.PlainText("")

	lines := make([]string, len(report.Results))
	for i, r := range report.Results {
		lines[i] = r.Identifier + ": " + r.Classification.String()
	}
	md.Details("Per-account classification ("+strconv.Itoa(len(lines))+")", strings.Join(lines, "<br>"))
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [credaudit](https://github.com/nao1215/credaudit)*")
}

func identifiers(results []model.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = "`" + r.Identifier + "`"
	}
	return out
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
