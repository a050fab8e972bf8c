package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const histogramBins = 50

// SaveHistogram renders the projected price distribution as a density
// histogram with the confidence bounds and the spot price marked, and
// writes it to path (format follows the extension, e.g. .png).
func SaveHistogram(p *Projection, title, path string) error {
	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = "Projected price"
	plt.Y.Label.Text = "Density"

	hist, err := plotter.NewHist(plotter.Values(p.Prices), histogramBins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	hist.Normalize(1)
	plt.Add(hist)

	_, _, _, yMax := hist.DataRange()

	if err := addMarker(plt, p.Lower, yMax, fmt.Sprintf("%.0f%% bounds", p.Confidence*100)); err != nil {
		return err
	}
	if err := addMarker(plt, p.Upper, yMax, ""); err != nil {
		return err
	}
	if err := addMarker(plt, p.SpotPrice, yMax, "spot price"); err != nil {
		return err
	}

	if err := plt.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram: %w", err)
	}
	return nil
}

// addMarker draws a vertical line at x spanning the histogram's height.
func addMarker(plt *plot.Plot, x, yMax float64, label string) error {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: yMax}})
	if err != nil {
		return fmt.Errorf("build marker line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	plt.Add(line)
	if label != "" {
		plt.Legend.Add(label, line)
	}
	return nil
}
