package simulation

import (
	"fmt"
	"math"
)

// Result holds simulated log-returns as a dense [nSims][horizon] matrix
// backed by a single allocation. It is fully populated before Simulate
// returns and is never mutated by this package afterwards.
type Result struct {
	data    []float64
	nSims   int
	horizon int
}

func newResult(nSims, horizon int) *Result {
	return &Result{
		data:    make([]float64, nSims*horizon),
		nSims:   nSims,
		horizon: horizon,
	}
}

// ResultFromRows builds a Result from explicit per-path rows. All rows
// must have equal, non-zero length.
func ResultFromRows(rows [][]float64) (*Result, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidParameter)
	}
	horizon := len(rows[0])
	if horizon == 0 {
		return nil, fmt.Errorf("%w: empty rows", ErrInvalidParameter)
	}
	r := newResult(len(rows), horizon)
	for i, row := range rows {
		if len(row) != horizon {
			return nil, fmt.Errorf("%w: row %d has length %d, want %d", ErrInvalidParameter, i, len(row), horizon)
		}
		copy(r.Row(i), row)
	}
	return r, nil
}

// NSims returns the number of simulated paths (rows).
func (r *Result) NSims() int { return r.nSims }

// Horizon returns the number of time steps per path (columns).
func (r *Result) Horizon() int { return r.horizon }

// At returns the simulated log-return for path i at step t.
func (r *Result) At(i, t int) float64 {
	return r.data[i*r.horizon+t]
}

// Row returns path i's returns as a view into the backing array. Each
// path writes only its own row during simulation, so rows are disjoint.
func (r *Result) Row(i int) []float64 {
	return r.data[i*r.horizon : (i+1)*r.horizon : (i+1)*r.horizon]
}

// TotalReturns returns the cumulative log-return of each path, i.e. the
// per-row sum. This is the quantity exponentiated to project prices.
func (r *Result) TotalReturns() []float64 {
	totals := make([]float64, r.nSims)
	for i := 0; i < r.nSims; i++ {
		var s float64
		for _, v := range r.Row(i) {
			s += v
		}
		totals[i] = s
	}
	return totals
}

// HasNonFinite reports whether any simulated return is NaN or infinite.
// Pathological but structurally valid parameters can drive the variance
// recursion to overflow; callers should check before computing
// percentiles.
func (r *Result) HasNonFinite() bool {
	for _, v := range r.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
