package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// percentileLevels are the rows of the workbook's Percentiles sheet.
var percentileLevels = []float64{0.005, 0.01, 0.05, 0.25, 0.50, 0.75, 0.95, 0.99, 0.995}

// SaveWorkbook writes the projection as an Excel workbook with a
// Summary sheet (run inputs and interval) and a Percentiles sheet.
func SaveWorkbook(p *Projection, symbol, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Symbol", symbol},
		{"Spot price", p.SpotPrice},
		{"Forecast period (days)", p.Horizon},
		{"Simulations", p.NSims},
		{"Confidence level", p.Confidence},
		{"Lower bound", p.Lower},
		{"Median", p.Median},
		{"Upper bound", p.Upper},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}

	const percentiles = "Percentiles"
	if _, err := f.NewSheet(percentiles); err != nil {
		return fmt.Errorf("create percentiles sheet: %w", err)
	}
	header := []interface{}{"Percentile", "Projected price"}
	if err := f.SetSheetRow(percentiles, "A1", &header); err != nil {
		return fmt.Errorf("write percentiles header: %w", err)
	}
	for i, level := range percentileLevels {
		row := []interface{}{level, p.Percentile(level)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("percentile cell: %w", err)
		}
		if err := f.SetSheetRow(percentiles, cell, &row); err != nil {
			return fmt.Errorf("write percentile row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
