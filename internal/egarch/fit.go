package egarch

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"

	"volsim/internal/simulation"
)

// Model is a fitted EGARCH(p,q) model.
type Model struct {
	Params        simulation.Params
	P             int
	Q             int
	CondVol       []float64 // in-sample conditional standard deviations
	LogLikelihood float64
	AIC           float64
	Observations  int
}

// LastVolatility returns the final in-sample conditional standard
// deviation, the starting point for simulation.
func (m *Model) LastVolatility() float64 {
	return m.CondVol[len(m.CondVol)-1]
}

// Fitter estimates EGARCH models by minimizing the negative Gaussian
// log-likelihood with Nelder-Mead.
type Fitter struct {
	logger *slog.Logger
}

// NewFitter creates a fitter. Pass a nil logger to use slog.Default.
func NewFitter(logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{logger: logger}
}

// Fit estimates an EGARCH(p,q) model on the given return series.
// The parameter vector is [mu, omega, alpha[1..p], beta[1..q]],
// unconstrained except that persistence sums >= 1 and non-finite
// likelihoods are penalized to keep the optimizer in the stable region.
func (f *Fitter) Fit(ctx context.Context, returns []float64, p, q int) (*Model, error) {
	if p < 1 || q < 1 {
		return nil, fmt.Errorf("%w: order (p=%d, q=%d) must be at least (1,1)", ErrFitFailed, p, q)
	}
	if len(returns) < minObservations {
		return nil, fmt.Errorf("%w: need at least %d returns, got %d", ErrInsufficientData, minObservations, len(returns))
	}
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: return[%d] = %v", ErrInvalidSeries, i, r)
		}
	}

	negLL := func(x []float64) float64 {
		if err := ctx.Err(); err != nil {
			return math.Inf(1)
		}
		mu, omega, alphaSum, betaSum := unpack(x, p, q)
		if betaSum >= 1 || betaSum <= -1 {
			return math.Inf(1)
		}
		_, ll := filter(returns, mu, omega, alphaSum, betaSum)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.Inf(1)
		}
		return -ll
	}

	x0 := initialGuess(returns, p, q)
	problem := optimize.Problem{Func: negLL}
	result, err := optimize.Minimize(problem, x0, &optimize.Settings{
		MajorIterations: 2000,
	}, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fit cancelled: %w", err)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, fmt.Errorf("%w: likelihood did not become finite", ErrFitFailed)
	}

	params := simulation.Params{
		Mu:    result.X[0],
		Omega: result.X[1],
		Alpha: append([]float64(nil), result.X[2:2+p]...),
		Beta:  append([]float64(nil), result.X[2+p:2+p+q]...),
	}
	condVol, ll := filter(returns, params.Mu, params.Omega, params.AlphaSum(), params.BetaSum())

	k := float64(2 + p + q)
	model := &Model{
		Params:        params,
		P:             p,
		Q:             q,
		CondVol:       condVol,
		LogLikelihood: ll,
		AIC:           2*k - 2*ll,
		Observations:  len(returns),
	}

	f.logger.InfoContext(ctx, "egarch model fitted",
		"p", p,
		"q", q,
		"log_likelihood", ll,
		"aic", model.AIC,
		"last_volatility", model.LastVolatility(),
		"stable", params.Stable(),
	)
	return model, nil
}

// SelectOrder fits every (p,q) in [1,maxP]x[1,maxQ] and returns the
// model with the lowest AIC. Orders whose fit fails are skipped; an
// error is returned only if no order fits.
func (f *Fitter) SelectOrder(ctx context.Context, returns []float64, maxP, maxQ int) (*Model, error) {
	if maxP < 1 {
		maxP = 1
	}
	if maxQ < 1 {
		maxQ = 1
	}

	var best *Model
	for p := 1; p <= maxP; p++ {
		for q := 1; q <= maxQ; q++ {
			model, err := f.Fit(ctx, returns, p, q)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				f.logger.WarnContext(ctx, "order skipped", "p", p, "q", q, "error", err)
				continue
			}
			if best == nil || model.AIC < best.AIC {
				best = model
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no (p,q) order up to (%d,%d) produced a fit", ErrFitFailed, maxP, maxQ)
	}
	f.logger.InfoContext(ctx, "order selected", "p", best.P, "q", best.Q, "aic", best.AIC)
	return best, nil
}

// unpack splits the optimizer vector into mu, omega and coefficient sums.
func unpack(x []float64, p, q int) (mu, omega, alphaSum, betaSum float64) {
	mu = x[0]
	omega = x[1]
	for _, a := range x[2 : 2+p] {
		alphaSum += a
	}
	for _, b := range x[2+p : 2+p+q] {
		betaSum += b
	}
	return mu, omega, alphaSum, betaSum
}

// initialGuess starts near a persistent, low-impact parameterization:
// beta sums to 0.9, alpha to 0.1, and omega anchors the unconditional
// variance at the sample variance.
func initialGuess(returns []float64, p, q int) []float64 {
	x := make([]float64, 2+p+q)
	x[0] = sampleMean(returns)
	x[1] = math.Log(sampleVariance(returns)) * (1 - 0.9)
	for i := 0; i < p; i++ {
		x[2+i] = 0.1 / float64(p)
	}
	for j := 0; j < q; j++ {
		x[2+p+j] = 0.9 / float64(q)
	}
	return x
}
