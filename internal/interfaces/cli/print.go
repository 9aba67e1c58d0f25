package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/turtacn/RxDossier/pkg/client"
)

// printReport renders the report to w as indented JSON or a summary
// table.
func printReport(w io.Writer, report *client.Report, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return printTable(w, report)
}

func printTable(w io.Writer, report *client.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINN\tGRADE\tFDA\tEMA\tVERDICT\tSTATE")
	for _, entry := range report.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Candidate.SourceName,
			valueOr(inn(entry), "-"),
			valueOr(grade(entry), "-"),
			valueOr(authorityStatus(entry, "FDA"), "-"),
			valueOr(authorityStatus(entry, "EMA"), "-"),
			valueOr(verdict(entry), "-"),
			entry.State,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nrun %s: %d completed, %d degraded, %d failed\n",
		report.RunID, report.Completed, report.Degraded, report.Failed)
	return err
}

func inn(entry client.Entry) string {
	if entry.Enrichment.Normalization == nil {
		return ""
	}
	return entry.Enrichment.Normalization.INN
}

func grade(entry client.Entry) string {
	if entry.Enrichment.Assessment == nil {
		return ""
	}
	return entry.Enrichment.Assessment.Grade
}

func verdict(entry client.Entry) string {
	if entry.Enrichment.DosageVerdict == nil {
		return ""
	}
	return *entry.Enrichment.DosageVerdict
}

func authorityStatus(entry client.Entry, authority string) string {
	result, ok := entry.Enrichment.Regulatory[authority]
	if !ok {
		return ""
	}
	return result.Status
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
