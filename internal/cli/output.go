// Package cli renders audit results for the fairscan command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// OutputFormat is the format for audit output.
type OutputFormat string

const (
	// OutputText is a human-readable table (default).
	OutputText OutputFormat = "text"
	// OutputMarkdown is a GitHub-flavoured Markdown table.
	OutputMarkdown OutputFormat = "markdown"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputMarkdown, OutputJSON:
		return f, nil
	case "md":
		return OutputMarkdown, nil
	case "":
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, markdown or json)", s)
}

// WriteAudit writes one audit result to w in the given format.
func WriteAudit(w io.Writer, result *models.AuditResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nModel %s: %d patterns (%s, target %d, threshold %s) in %dms, %d nodes visited\n",
		modelLabel(result), len(result.Patterns), result.Request.Metric, result.Request.TargetValue,
		formatProb(result.Request.Threshold), result.DurationMs, result.VisitedNodes)
	if result.Status == models.StatusTimeout {
		fmt.Fprintln(w, "Search timed out; results are partial.")
	}
	fmt.Fprintln(w)
	if len(result.Patterns) == 0 {
		fmt.Fprintln(w, "No discrimination patterns found.")
		return nil
	}
	tw := patternTable(result)
	fmt.Fprintln(w, render(tw, format))
	return nil
}

// WriteAuditList writes a summary row per audit.
func WriteAuditList(w io.Writer, audits []*models.AuditResult, format OutputFormat) error {
	if format == OutputJSON {
		if audits == nil {
			audits = []*models.AuditResult{}
		}
		return writeJSON(w, audits)
	}
	if len(audits) == 0 {
		fmt.Fprintln(w, "No audits stored.")
		return nil
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Model", "Metric", "Patterns", "Top score", "Status", "Created"})
	for _, a := range audits {
		top := "-"
		if len(a.Patterns) > 0 {
			top = formatScore(a.Patterns[0].Score)
		}
		tw.AppendRow(table.Row{
			a.ID, utils.Truncate(modelLabel(a), 40), a.Request.Metric, len(a.Patterns), top, a.Status,
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	fmt.Fprintln(w, render(tw, format))
	return nil
}

func patternTable(result *models.AuditResult) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"#", "Score", "Sensitive", "Context", "P(d|x,y)", "P(d|y)"})
	for i, p := range result.Patterns {
		tw.AppendRow(table.Row{
			i + 1,
			formatScore(p.Score),
			FormatAssignments(p.Sens, result.FeatureNames),
			FormatAssignments(p.Base, result.FeatureNames),
			formatProb(p.PAll()),
			formatProb(p.PBase()),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 48},
		{Number: 4, WidthMax: 48},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw
}

func render(tw table.Writer, format OutputFormat) string {
	if format == OutputMarkdown {
		return tw.RenderMarkdown()
	}
	tw.SetStyle(table.StyleLight)
	return tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatAssignments renders assignments as "name=value" pairs. An empty
// list renders as "-".
func FormatAssignments(as []models.Assignment, names []string) string {
	if len(as) == 0 {
		return "-"
	}
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = utils.FeatureLabel(names, a.Feature) + "=" + strconv.Itoa(a.Value)
	}
	return strings.Join(parts, ", ")
}

func modelLabel(r *models.AuditResult) string {
	if r.ModelPath != "" {
		return r.ModelPath
	}
	if r.ModelName != "" {
		return r.ModelName
	}
	return "(unnamed)"
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatProb(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
