package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/product-battle/internal/model"
)

// formatComparison writes a human-readable comparison to out.
func formatComparison(out io.Writer, res *model.ComparisonResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRODUCT\tSCORE\tPOSTS")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----")
	for _, r := range []*model.AnalysisRecord{res.A, res.B} {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", r.DisplayName, r.SentimentScore, r.PostsAnalyzed)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	if winner := res.Winner(); winner != nil {
		_, _ = fmt.Fprintf(out, "Winner: %s (+%d)\n", winner.DisplayName, res.ScoreDifference)
	} else {
		_, _ = fmt.Fprintln(out, "Result: tie")
	}
	for _, r := range []*model.AnalysisRecord{res.A, res.B} {
		_, _ = fmt.Fprintln(out)
		formatRecord(out, r)
	}
}

// formatRecord writes one analysis as a short report.
func formatRecord(out io.Writer, r *model.AnalysisRecord) {
	_, _ = fmt.Fprintf(out, "%s: %d/100 from %d posts\n", r.DisplayName, r.SentimentScore, r.PostsAnalyzed)
	writeList(out, "Pros", r.Pros)
	writeList(out, "Cons", r.Cons)
	writeList(out, "Themes", r.KeyThemes)
	if r.Explanation != "" {
		_, _ = fmt.Fprintf(out, "  Why: %s\n", r.Explanation)
	}
	if r.Recommendation != "" {
		_, _ = fmt.Fprintf(out, "  Recommendation: %s\n", r.Recommendation)
	}
}

func writeList(out io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "  %s:\n", label)
	for _, it := range items {
		_, _ = fmt.Fprintf(out, "    - %s\n", it)
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

// formatRecordList writes records as a table, YAML or JSON.
func formatRecordList(out io.Writer, recs []model.AnalysisRecord, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "KEY\tNAME\tSCORE\tPOSTS\tMODEL\tBUILT")
		_, _ = fmt.Fprintln(w, "---\t----\t-----\t-----\t-----\t-----")
		for _, r := range recs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.Key,
				truncate(r.DisplayName, 30),
				r.SentimentScore,
				r.PostsAnalyzed,
				r.Model,
				r.BuiltAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "json":
		return writeJSON(out, recs)
	}
	return eris.Errorf("unknown output format %q (want table, yaml or json)", format)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
