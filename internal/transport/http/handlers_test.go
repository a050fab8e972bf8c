package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volsim/internal/operations"
)

// doneStep completes immediately.
type doneStep struct{}

func (doneStep) ID() string                              { return "noop" }
func (doneStep) Name() string                            { return "noop" }
func (doneStep) Validate(*operations.State) error        { return nil }
func (doneStep) Execute(context.Context, *operations.State) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	coordinator := operations.NewCoordinator(operations.NewManager(nil, nil, nil), time.Minute, nil)
	return NewRouter(Deps{
		Coordinator: coordinator,
		BuildSteps: func(PipelineRequest) []operations.Step {
			return []operations.Step{doneStep{}}
		},
		SimDefaults: SimulateDefaults{
			NSimulations:   1000,
			ForecastPeriod: 21,
			Confidence:     0.99,
		},
		SimConcurrency: 4,
	})
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSimulateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/v1/simulate", map[string]interface{}{
		"mu":              0.0005,
		"omega":           -0.1,
		"alpha":           []float64{0.1, 0.05},
		"beta":            []float64{0.85, 0.05},
		"last_volatility": 0.015,
		"n_simulations":   500,
		"forecast_period": 21,
		"spot_price":      125000,
		"seed":            42,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SimulateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 500, resp.NSimulations)
	assert.Equal(t, 21, resp.ForecastPeriod)
	assert.Equal(t, 0.99, resp.Confidence) // default applied
	assert.Less(t, resp.LowerBound, resp.UpperBound)
	assert.True(t, resp.Stable)
}

func TestSimulateEndpointIsDeterministic(t *testing.T) {
	router := newTestRouter(t)
	body := map[string]interface{}{
		"mu":              0.0,
		"omega":           -0.2,
		"alpha":           []float64{0.1},
		"beta":            []float64{0.9},
		"last_volatility": 0.01,
		"n_simulations":   200,
		"forecast_period": 5,
		"seed":            7,
	}

	rec1 := postJSON(t, router, "/api/v1/simulate", body)
	rec2 := postJSON(t, router, "/api/v1/simulate", body)
	require.Equal(t, http.StatusOK, rec1.Code)
	assert.JSONEq(t, rec1.Body.String(), rec2.Body.String())
}

func TestSimulateEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{
			name: "missing_alpha",
			body: map[string]interface{}{
				"beta":            []float64{0.9},
				"last_volatility": 0.01,
			},
			code: http.StatusBadRequest,
		},
		{
			name: "zero_volatility",
			body: map[string]interface{}{
				"alpha":           []float64{0.1},
				"beta":            []float64{0.9},
				"last_volatility": 0,
			},
			code: http.StatusBadRequest,
		},
		{
			name: "negative_volatility",
			body: map[string]interface{}{
				"alpha":           []float64{0.1},
				"beta":            []float64{0.9},
				"last_volatility": -0.1,
			},
			code: http.StatusBadRequest,
		},
		{
			name: "oversized_ensemble",
			body: map[string]interface{}{
				"alpha":           []float64{0.1},
				"beta":            []float64{0.9},
				"last_volatility": 0.01,
				"n_simulations":   10_000_000,
			},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/v1/simulate", tt.body)
			assert.Equal(t, tt.code, rec.Code)

			var envelope map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.NotEmpty(t, envelope["error_code"])
		})
	}
}

func TestSimulateEndpointRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationsLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/v1/operations", map[string]interface{}{})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	id := started["operation_id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/operations/"+id, nil)
		getRec := httptest.NewRecorder()
		router.ServeHTTP(getRec, req)
		if getRec.Code != http.StatusOK {
			return false
		}
		var snap operations.OperationSnapshot
		if err := json.Unmarshal(getRec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == operations.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// Listing includes the run.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)
	var list []operations.OperationSnapshot
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestOperationNotFound(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
