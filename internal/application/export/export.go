// Package export renders a finished Report into portable formats (JSON,
// CSV) and stores the rendered artifacts in object storage for download.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/enrichment/regulatory"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// Format selects an export rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.Newf(errors.ErrCodeBadRequest, "unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the rendering.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// csvHeader mirrors the review table the dossier is read from: identity,
// normalization, assessment, one status column per authority, dosage
// verdict, and the article links.
var csvHeader = []string{
	"source_name", "inn", "source_dosage",
	"grade", "justification", "summary_note",
	"status_fda", "status_ema", "status_bnf", "status_who_eml",
	"dosage_verdict", "articles", "state", "failures",
}

// Render serializes the report in the requested format.
func Render(report *candidate.Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(report)
	case FormatCSV:
		return renderCSV(report)
	default:
		return nil, errors.Newf(errors.ErrCodeBadRequest, "unsupported export format %q", format)
	}
}

func renderJSON(report *candidate.Report) ([]byte, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to encode report as JSON")
	}
	return raw, nil
}

func renderCSV(report *candidate.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write CSV header")
	}
	for _, entry := range report.Entries {
		if err := w.Write(entryRow(entry)); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write CSV row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to flush CSV output")
	}
	return buf.Bytes(), nil
}

const absent = "N/A"

func entryRow(entry candidate.Entry) []string {
	e := entry.Enrichment

	inn := absent
	if e.Normalization != nil && e.Normalization.INN != "" {
		inn = e.Normalization.INN
	}

	grade, justification, note := absent, absent, absent
	if e.Assessment != nil {
		grade = string(e.Assessment.Grade)
		justification = e.Assessment.Justification
		note = e.Assessment.SummaryNote
	}

	verdict := absent
	if e.DosageVerdict != nil {
		verdict = string(*e.DosageVerdict)
	}

	articles := absent
	if e.Literature != nil && len(e.Literature.Articles) > 0 {
		parts := make([]string, 0, len(e.Literature.Articles))
		for _, a := range e.Literature.Articles {
			parts = append(parts, a.Title+" ("+a.Link+")")
		}
		articles = strings.Join(parts, "; ")
	}

	var failures []string
	for _, f := range e.Failures {
		failures = append(failures, string(f.Stage)+": "+f.Reason)
	}

	return []string{
		orAbsent(entry.Candidate.SourceName), inn, orAbsent(entry.Candidate.SourceDosage),
		grade, justification, note,
		authorityStatus(e, regulatory.AuthorityFDA),
		authorityStatus(e, regulatory.AuthorityEMA),
		authorityStatus(e, regulatory.AuthorityBNF),
		authorityStatus(e, regulatory.AuthorityWHOEML),
		verdict, articles, string(entry.State), strings.Join(failures, "; "),
	}
}

func authorityStatus(e candidate.Enrichment, authority string) string {
	if r, ok := e.Regulatory[authority]; ok {
		return string(r.Status)
	}
	return absent
}

func orAbsent(s string) string {
	if strings.TrimSpace(s) == "" {
		return absent
	}
	return s
}
