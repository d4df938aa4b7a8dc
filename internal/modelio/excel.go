package modelio

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/fairscan/internal/models"
)

// decisionRow names the sheet row that carries the decision prior.
const decisionRow = "decision"

// sheetHeader is the header row of a model sheet.
var sheetHeader = []string{"name", "sensitive", "p(x=0|d=0)", "p(x=1|d=0)", "p(x=0|d=1)", "p(x=1|d=1)"}

// parseExcel reads the first sheet of a workbook. After a header row comes
// a decision row with the target value in the sensitive column and the
// prior in the first two parameter columns, then one row per feature.
func parseExcel(content []byte) (*models.Model, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrInvalidModel)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}

	m := &models.Model{Name: sheets[0]}
	sawDecision := false
	for i, row := range rows {
		name := cell(row, 0)
		if i == 0 || name == "" {
			continue
		}
		cells, err := parseCells(row, i+1)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(name, decisionRow) {
			m.Prior = [2]float64{cells[0], cells[1]}
			if target := cell(row, 1); target != "" {
				if m.TargetValue, err = strconv.Atoi(target); err != nil {
					return nil, fmt.Errorf("%w: row %d: bad target value %q", models.ErrInvalidModel, i+1, target)
				}
			}
			sawDecision = true
			continue
		}
		sensitive, err := parseFlag(cell(row, 1))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", models.ErrInvalidModel, i+1, err)
		}
		feature := models.Feature{Name: name, Sensitive: sensitive}
		copy(feature.Params[:], cells)
		m.Features = append(m.Features, feature)
	}
	if !sawDecision {
		return nil, fmt.Errorf("%w: no %q row", models.ErrInvalidModel, decisionRow)
	}
	return m, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseCells reads the four parameter columns. The decision row only
// needs the first two.
func parseCells(row []string, line int) ([]float64, error) {
	out := make([]float64, 4)
	for j := range out {
		s := cell(row, 2+j)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %d: %v", models.ErrInvalidModel, line, 3+j, err)
		}
		out[j] = v
	}
	return out, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "no", "false":
		return false, nil
	case "1", "yes", "true":
		return true, nil
	default:
		return false, fmt.Errorf("bad sensitive flag %q", s)
	}
}

// WriteExcel writes m to a new workbook in the layout parseExcel reads.
func WriteExcel(m *models.Model) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		toRow(sheetHeader),
		{decisionRow, m.TargetValue, m.Prior[0], m.Prior[1]},
	}
	for _, ft := range m.Features {
		flag := 0
		if ft.Sensitive {
			flag = 1
		}
		rows = append(rows, []any{ft.Name, flag, ft.Params[0], ft.Params[1], ft.Params[2], ft.Params[3]})
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f, nil
}

func toRow(cells []string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
