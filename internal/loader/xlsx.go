package loader

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// DemographicsFromXLSX reads census demographics from a spreadsheet export.
// The first row must be a header naming the same columns the CSV form uses.
func DemographicsFromXLSX(path string) ([]model.Demographics, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("loader: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("loader: xlsx %s has no data rows", path)
	}

	colIdx := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		colIdx[strings.ToLower(strings.TrimSpace(cell.String()))] = i
	}
	if _, ok := colIdx["geoid"]; !ok {
		return nil, eris.Errorf("loader: xlsx %s has no GEOID column", path)
	}

	rows := make([]model.Demographics, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cell := func(name string) string {
			idx, ok := colIdx[name]
			if !ok || idx >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[idx].String())
		}

		geoid := model.NormalizeGEOID(cell("geoid"))
		if geoid == "" {
			continue
		}

		d := model.Demographics{
			GEOID:           geoid,
			TotalPopulation: cellInt(cell("total_population")),
			PctBlack:        cellFloat(cell("pct_black")),
			PctWhite:        cellFloat(cell("pct_white")),
			PctAsian:        cellFloat(cell("pct_asian")),
			PctPoverty:      cellFloat(cell("pct_poverty")),
		}
		if income, err := strconv.ParseFloat(cell("median_household_income"), 64); err == nil && income != incomeSuppressed {
			d.MedianIncome = &income
		}
		rows = append(rows, d)
	}
	return rows, nil
}

func cellFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func cellInt(s string) int {
	// Spreadsheet integers frequently surface as "5000.0".
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v)
}
