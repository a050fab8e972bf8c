package report

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volsim/internal/simulation"
)

func TestProjectInputValidation(t *testing.T) {
	res, err := simulation.ResultFromRows([][]float64{{0.01, -0.02}})
	require.NoError(t, err)

	_, err = Project(nil, 100, 0.99)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Project(res, 0, 0.99)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Project(res, -5, 0.99)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Project(res, 100, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Project(res, 100, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProjectRejectsDegenerateResult(t *testing.T) {
	res, err := simulation.ResultFromRows([][]float64{{0.01, math.NaN()}})
	require.NoError(t, err)

	_, err = Project(res, 100, 0.99)
	assert.ErrorIs(t, err, ErrDegenerateResult)
}

func TestProjectScalesPrices(t *testing.T) {
	// Two paths with known cumulative returns: 0.1 and -0.1.
	res, err := simulation.ResultFromRows([][]float64{
		{0.05, 0.05},
		{-0.05, -0.05},
	})
	require.NoError(t, err)

	proj, err := Project(res, 1000, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 2, proj.NSims)
	assert.Equal(t, 2, proj.Horizon)
	require.Len(t, proj.Prices, 2)
	assert.InDelta(t, 1000*math.Exp(0.1), proj.Prices[0], 1e-9)
	assert.InDelta(t, 1000*math.Exp(-0.1), proj.Prices[1], 1e-9)
	assert.LessOrEqual(t, proj.Lower, proj.Upper)
}

func TestProjectEndToEndScenario(t *testing.T) {
	// Full-scale scenario: 1000 paths over 21 days with the reference
	// parameter set must yield a finite, ordered 99% interval that
	// brackets the spot price.
	params := simulation.Params{
		Mu:    0.0005,
		Omega: -0.1,
		Alpha: []float64{0.1, 0.05},
		Beta:  []float64{0.85, 0.05},
	}

	sim := simulation.NewSimulator(2024, nil)
	res, err := sim.Simulate(context.Background(), params, 0.015, 1000, 21)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.NSims())
	assert.Equal(t, 21, res.Horizon())

	const spot = 125000.0
	proj, err := Project(res, spot, 0.99)
	require.NoError(t, err)

	assert.False(t, math.IsNaN(proj.Lower) || math.IsInf(proj.Lower, 0))
	assert.False(t, math.IsNaN(proj.Upper) || math.IsInf(proj.Upper, 0))
	assert.Less(t, proj.Lower, proj.Upper)
	assert.Greater(t, proj.Lower, 0.0)

	// With mild drift over one month, a 99% interval comfortably
	// brackets the spot price.
	assert.Less(t, proj.Lower, spot)
	assert.Greater(t, proj.Upper, spot)

	summary := proj.Summary()
	assert.Contains(t, summary, "99% confidence interval for 21 days ahead")
}

func TestPercentileOrdering(t *testing.T) {
	res, err := simulation.ResultFromRows([][]float64{
		{0.01}, {0.02}, {-0.01}, {-0.02}, {0.0},
		{0.03}, {-0.03}, {0.015}, {-0.015}, {0.005},
	})
	require.NoError(t, err)

	proj, err := Project(res, 100, 0.9)
	require.NoError(t, err)

	p05 := proj.Percentile(0.05)
	p50 := proj.Percentile(0.50)
	p95 := proj.Percentile(0.95)
	assert.LessOrEqual(t, p05, p50)
	assert.LessOrEqual(t, p50, p95)
	assert.InDelta(t, proj.Median, p50, 1e-12)
}

func TestSavePricesCSV(t *testing.T) {
	res, err := simulation.ResultFromRows([][]float64{{0.01}, {-0.01}})
	require.NoError(t, err)
	proj, err := Project(res, 100, 0.9)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, SavePricesCSV(proj, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "projected_price")
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 3, lines) // header + 2 paths
}

func TestSaveWorkbook(t *testing.T) {
	res, err := simulation.ResultFromRows([][]float64{{0.01}, {-0.01}, {0.02}})
	require.NoError(t, err)
	proj, err := Project(res, 100, 0.95)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, SaveWorkbook(proj, "^BVSP", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveHistogram(t *testing.T) {
	sim := simulation.NewSimulator(7, nil)
	res, err := sim.Simulate(context.Background(), simulation.Params{
		Mu:    0.0005,
		Omega: -0.1,
		Alpha: []float64{0.1},
		Beta:  []float64{0.9},
	}, 0.015, 200, 21)
	require.NoError(t, err)

	proj, err := Project(res, 100000, 0.99)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "distribution.png")
	require.NoError(t, SaveHistogram(proj, "Projected distribution", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
