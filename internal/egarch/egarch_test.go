package egarch

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestLogReturns(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64
		want    []float64
		wantErr error
	}{
		{
			name:   "simple_series",
			closes: []float64{100, 110, 99},
			want:   []float64{math.Log(1.1), math.Log(99.0 / 110.0)},
		},
		{
			name:   "flat_series",
			closes: []float64{50, 50, 50},
			want:   []float64{0, 0},
		},
		{
			name:    "too_short",
			closes:  []float64{100},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "non_positive_price",
			closes:  []float64{100, 0, 99},
			wantErr: ErrInvalidSeries,
		},
		{
			name:    "nan_price",
			closes:  []float64{100, math.NaN()},
			wantErr: ErrInvalidSeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LogReturns(tt.closes)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestFilterProducesFiniteLikelihood(t *testing.T) {
	returns := syntheticReturns(t, 500)
	condVol, ll := filter(returns, 0.0005, -0.2, 0.1, 0.9)

	require.Len(t, condVol, len(returns))
	for i, v := range condVol {
		assert.Greater(t, v, 0.0, "cond vol %d", i)
		assert.False(t, math.IsInf(v, 0))
	}
	assert.False(t, math.IsNaN(ll))
	assert.False(t, math.IsInf(ll, 0))
}

func TestFilterOneStep(t *testing.T) {
	// First conditional variance is the sample variance; the likelihood
	// contribution of the first observation follows directly.
	returns := []float64{0.01, -0.02, 0.005, 0.015, -0.01}
	condVol, _ := filter(returns, 0, -0.1, 0.1, 0.9)
	assert.InDelta(t, math.Sqrt(sampleVariance(returns)), condVol[0], 1e-12)
}

func TestFitRejectsBadInput(t *testing.T) {
	f := NewFitter(nil)
	ctx := context.Background()

	_, err := f.Fit(ctx, make([]float64, 10), 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = f.Fit(ctx, syntheticReturns(t, 100), 0, 1)
	assert.ErrorIs(t, err, ErrFitFailed)

	bad := syntheticReturns(t, 100)
	bad[50] = math.NaN()
	_, err = f.Fit(ctx, bad, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidSeries)
}

func TestFitProducesUsableModel(t *testing.T) {
	f := NewFitter(nil)
	returns := syntheticReturns(t, 800)

	model, err := f.Fit(context.Background(), returns, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, model.P)
	assert.Equal(t, 2, model.Q)
	assert.Len(t, model.Params.Alpha, 2)
	assert.Len(t, model.Params.Beta, 2)
	assert.Len(t, model.CondVol, len(returns))
	assert.Equal(t, len(returns), model.Observations)

	assert.False(t, math.IsNaN(model.LogLikelihood))
	assert.False(t, math.IsInf(model.LogLikelihood, 0))

	// AIC definition: 2k - 2LL with k = 2 + p + q.
	assert.InDelta(t, 2*6-2*model.LogLikelihood, model.AIC, 1e-9)

	assert.Greater(t, model.LastVolatility(), 0.0)
	assert.Less(t, model.Params.BetaSum(), 1.0)
}

func TestSelectOrderPicksLowestAIC(t *testing.T) {
	f := NewFitter(nil)
	returns := syntheticReturns(t, 600)

	best, err := f.SelectOrder(context.Background(), returns, 2, 2)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, best.P, 1)
	assert.LessOrEqual(t, best.P, 2)
	assert.GreaterOrEqual(t, best.Q, 1)
	assert.LessOrEqual(t, best.Q, 2)

	// The winner can be no worse than a direct (1,1) fit.
	m11, err := f.Fit(context.Background(), returns, 1, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, best.AIC, m11.AIC+1e-9)
}

// syntheticReturns generates a heteroskedastic daily return series with
// a volatility regime shift, enough structure for the fit to latch onto.
func syntheticReturns(t *testing.T, n int) []float64 {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	returns := make([]float64, n)
	for i := range returns {
		sigma := 0.01
		if i > n/2 {
			sigma = 0.025
		}
		returns[i] = 0.0003 + sigma*rng.NormFloat64()
	}
	return returns
}
