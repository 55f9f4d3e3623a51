package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/credaudit/internal/model"
)

// CSVWriter exports one record per Weak or WeakWithLinkedDuplicate account.
// Compliant, null-credential and malformed accounts are not exported.
// The source column is present only when cleartexts are exposed.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...Option) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write exports the weak accounts of one report.
func (w *CSVWriter) Write(report *model.AuditReport) (int, error) {
	return w.WriteSummary([]*model.AuditReport{report})
}

// WriteSummary exports the weak accounts of every report under one header.
func (w *CSVWriter) WriteSummary(reports []*model.AuditReport) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(w.header()); err != nil {
		return 0, err
	}
	for _, report := range reports {
		for _, r := range report.WeakResults() {
			if err := cw.Write(w.record(report, r)); err != nil {
				return 0, err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

func (w *CSVWriter) header() []string {
	h := []string{"target", "run_id", "identifier", "classification", "blank", "linked_identifier"}
	if w.exposeCleartext {
		h = append(h, "source")
	}
	return h
}

func (w *CSVWriter) record(report *model.AuditReport, r model.Result) []string {
	rec := []string{
		report.Target,
		report.ID,
		r.Identifier,
		r.Classification.String(),
		strconv.FormatBool(r.Blank),
		r.LinkedIdentifier,
	}
	if w.exposeCleartext {
		rec = append(rec, r.Source)
	}
	return rec
}
