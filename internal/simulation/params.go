package simulation

import (
	"errors"
	"fmt"
	"math"
)

// Typed failures surfaced by input validation. Wrapped errors carry the
// offending value; callers match with errors.Is.
var (
	// ErrInvalidParameter indicates a structurally invalid input such as an
	// empty coefficient slice or a non-positive ensemble size.
	ErrInvalidParameter = errors.New("invalid simulation parameter")

	// ErrNumericDegeneracy indicates an input that would poison the
	// recursion with -Inf or NaN, such as a zero or negative last
	// volatility.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)

// Params holds fitted EGARCH(p,q) coefficients. Alpha are the ARCH-effect
// coefficients (length p), Beta the GARCH-persistence coefficients
// (length q). Values are read-only once handed to the simulator.
//
// The recursion applied by Simulate reuses the single current shock for
// every alpha term and the single previous log-variance for every beta
// term, matching the estimation filter in internal/egarch. It does not
// maintain per-lag history buffers, so for p,q > 1 only the coefficient
// sums matter.
type Params struct {
	Mu    float64   `json:"mu"`
	Omega float64   `json:"omega"`
	Alpha []float64 `json:"alpha"`
	Beta  []float64 `json:"beta"`
}

// Validate checks the structural invariants: at least one alpha and one
// beta coefficient, and all values finite.
func (p Params) Validate() error {
	if len(p.Alpha) == 0 {
		return fmt.Errorf("%w: alpha must have at least one coefficient", ErrInvalidParameter)
	}
	if len(p.Beta) == 0 {
		return fmt.Errorf("%w: beta must have at least one coefficient", ErrInvalidParameter)
	}
	if !isFinite(p.Mu) || !isFinite(p.Omega) {
		return fmt.Errorf("%w: mu and omega must be finite", ErrNumericDegeneracy)
	}
	for i, a := range p.Alpha {
		if !isFinite(a) {
			return fmt.Errorf("%w: alpha[%d] is not finite", ErrNumericDegeneracy, i+1)
		}
	}
	for i, b := range p.Beta {
		if !isFinite(b) {
			return fmt.Errorf("%w: beta[%d] is not finite", ErrNumericDegeneracy, i+1)
		}
	}
	return nil
}

// Order returns the model order (p, q).
func (p Params) Order() (int, int) {
	return len(p.Alpha), len(p.Beta)
}

// AlphaSum returns the sum of the ARCH coefficients.
func (p Params) AlphaSum() float64 {
	return sum(p.Alpha)
}

// BetaSum returns the sum of the GARCH persistence coefficients.
func (p Params) BetaSum() float64 {
	return sum(p.Beta)
}

// Stable reports whether the persistence sum satisfies the usual
// stationarity condition sum(beta) < 1. It is advisory only; the
// simulator does not reject unstable parameter sets.
func (p Params) Stable() bool {
	return p.BetaSum() < 1
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
