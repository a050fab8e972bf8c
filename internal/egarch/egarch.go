// Package egarch estimates EGARCH(p,q) volatility models from daily
// log-return series by quasi-maximum likelihood, and selects the model
// order by AIC. The fitted parameters and the last conditional
// volatility feed the Monte Carlo simulator in internal/simulation.
//
// The estimation filter uses the same simplified recursion as the
// simulator: every alpha coefficient multiplies the single current
// standardized shock and every beta coefficient the single previous
// log-variance, so for p,q > 1 the coefficient sums carry the dynamics.
package egarch

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientData indicates too few observations to compute
	// returns or fit a model.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidSeries indicates a price or return series containing
	// non-positive prices or non-finite values.
	ErrInvalidSeries = errors.New("invalid series")

	// ErrFitFailed indicates the optimizer did not produce a usable
	// parameter set for the requested order.
	ErrFitFailed = errors.New("model fit failed")
)

// minObservations is the fewest returns accepted for a fit. Below this
// the likelihood surface is too flat for the optimizer to be meaningful.
const minObservations = 50

var sqrt2OverPi = math.Sqrt(2 / math.Pi)

// LogReturns computes ln(C_t / C_{t-1}) for a series of closing prices.
// All prices must be positive and finite; at least two are required.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 closes, got %d", ErrInsufficientData, len(closes))
	}
	returns := make([]float64, 0, len(closes)-1)
	for i, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: close[%d] = %v", ErrInvalidSeries, i, c)
		}
		if i > 0 {
			returns = append(returns, math.Log(c/closes[i-1]))
		}
	}
	return returns, nil
}

// filter runs the EGARCH recursion over the in-sample returns, producing
// the conditional standard deviation series and the Gaussian
// log-likelihood. The log-variance is seeded with the unconditional
// sample variance.
func filter(returns []float64, mu, omega, alphaSum, betaSum float64) (condVol []float64, logLik float64) {
	n := len(returns)
	condVol = make([]float64, n)

	logSigma2 := math.Log(sampleVariance(returns))
	const log2Pi = 1.8378770664093453

	for t, r := range returns {
		sigma2 := math.Exp(logSigma2)
		sigma := math.Sqrt(sigma2)
		condVol[t] = sigma

		resid := r - mu
		logLik += -0.5 * (log2Pi + logSigma2 + resid*resid/sigma2)

		z := resid / sigma
		logSigma2 = omega + alphaSum*(math.Abs(z)-sqrt2OverPi) + betaSum*logSigma2
	}
	return condVol, logLik
}

func sampleMean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func sampleVariance(xs []float64) float64 {
	m := sampleMean(xs)
	var s float64
	for _, x := range xs {
		d := x - m
		s += d * d
	}
	v := s / float64(len(xs)-1)
	if v <= 0 || math.IsNaN(v) {
		// Degenerate constant series; keep the filter finite.
		v = 1e-10
	}
	return v
}
