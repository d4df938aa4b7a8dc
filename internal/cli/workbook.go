package cli

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/fairscan/internal/models"
)

const (
	patternsSheet = "Patterns"
	summarySheet  = "Summary"
)

var workbookHeader = []any{"rank", "score", "sensitive", "context", "p(d|x,y)", "p(d|y)", "p(d,x,y)", "p(not d,x,y)", "p(d,y)", "p(not d,y)"}

// WriteWorkbook lays out an audit as a workbook with a pattern sheet and a
// summary sheet. The caller saves and closes the file.
func WriteWorkbook(result *models.AuditResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), patternsSheet); err != nil {
		f.Close()
		return nil, err
	}
	rows := [][]any{workbookHeader}
	for i, p := range result.Patterns {
		rows = append(rows, []any{
			i + 1, scoreCell(p.Score),
			FormatAssignments(p.Sens, result.FeatureNames),
			FormatAssignments(p.Base, result.FeatureNames),
			p.PAll(), p.PBase(),
			p.PDXY, p.PNotDXY, p.PDY, p.PNotDY,
		})
	}
	if err := setRows(f, patternsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	summary := [][]any{
		{"id", result.ID},
		{"model", modelLabel(result)},
		{"metric", string(result.Request.Metric)},
		{"target_value", result.Request.TargetValue},
		{"threshold", result.Request.Threshold},
		{"k", result.Request.K},
		{"patterns", len(result.Patterns)},
		{"visited_nodes", result.VisitedNodes},
		{"duration_ms", result.DurationMs},
		{"status", string(result.Status)},
	}
	if err := setRows(f, summarySheet, summary); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// SaveWorkbook writes the audit workbook to path.
func SaveWorkbook(result *models.AuditResult, path string) error {
	f, err := WriteWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// scoreCell writes infinite scores as text, which a numeric cell cannot hold.
func scoreCell(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return formatScore(v)
	}
	return v
}
