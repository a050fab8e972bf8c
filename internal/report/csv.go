package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// SavePricesCSV writes the per-path projected prices to a CSV file with
// a single "projected_price" column, one row per simulated path.
func SavePricesCSV(p *Projection, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"projected_price"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, price := range p.Prices {
		if err := writer.Write([]string{strconv.FormatFloat(price, 'f', -1, 64)}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
