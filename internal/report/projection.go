// Package report turns a simulated return ensemble into price
// projections with percentile-based confidence bounds, and renders them
// as console output, CSV, an Excel workbook and a histogram image.
package report

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"volsim/internal/simulation"
)

var (
	// ErrInvalidInput indicates a bad spot price or confidence level.
	ErrInvalidInput = errors.New("invalid projection input")

	// ErrDegenerateResult indicates the simulation matrix contains NaN
	// or Inf values, so percentiles would be meaningless.
	ErrDegenerateResult = errors.New("degenerate simulation result")
)

// Projection holds the price distribution implied by a simulation run:
// spot * exp(cumulative log-return) per path, with two-sided percentile
// bounds at the configured confidence level.
type Projection struct {
	SpotPrice  float64
	Confidence float64
	Horizon    int
	NSims      int

	Prices []float64 // per-path projected prices, unsorted
	Lower  float64
	Upper  float64
	Median float64
}

// Project computes the price projection for a simulation result.
// confidence is the two-sided level, e.g. 0.99 for a 99% interval.
// Results containing non-finite returns are rejected rather than fed
// into percentile computation.
func Project(res *simulation.Result, spotPrice, confidence float64) (*Projection, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil result", ErrInvalidInput)
	}
	if spotPrice <= 0 || math.IsNaN(spotPrice) || math.IsInf(spotPrice, 0) {
		return nil, fmt.Errorf("%w: spot price must be positive and finite, got %v", ErrInvalidInput, spotPrice)
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence must be in (0,1), got %v", ErrInvalidInput, confidence)
	}
	if res.HasNonFinite() {
		return nil, fmt.Errorf("%w: simulated returns contain NaN or Inf", ErrDegenerateResult)
	}

	totals := res.TotalReturns()
	prices := make([]float64, len(totals))
	for i, total := range totals {
		prices[i] = spotPrice * math.Exp(total)
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	lowerP := (1 - confidence) / 2
	upperP := 1 - lowerP

	return &Projection{
		SpotPrice:  spotPrice,
		Confidence: confidence,
		Horizon:    res.Horizon(),
		NSims:      res.NSims(),
		Prices:     prices,
		Lower:      stat.Quantile(lowerP, stat.Empirical, sorted, nil),
		Upper:      stat.Quantile(upperP, stat.Empirical, sorted, nil),
		Median:     stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}, nil
}

// Percentile returns the empirical p-quantile of the projected prices.
func (p *Projection) Percentile(q float64) float64 {
	sorted := append([]float64(nil), p.Prices...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// Summary returns a console-friendly rendering of the interval, in the
// shape the analysis prints after a run.
func (p *Projection) Summary() string {
	return fmt.Sprintf(
		"Current price: %.2f\n%.0f%% confidence interval for %d days ahead:\nLower bound: %.2f\nUpper bound: %.2f\n",
		p.SpotPrice, p.Confidence*100, p.Horizon, p.Lower, p.Upper,
	)
}
