// Package http exposes the simulator and the analysis pipeline over a
// chi-routed JSON API.
package http

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "volsim/internal/errors"
	"volsim/internal/report"
	"volsim/internal/simulation"
)

// SimulateRequest carries explicit model parameters for a one-shot
// simulation, bypassing data download and model fitting.
type SimulateRequest struct {
	Mu             float64   `json:"mu"`
	Omega          float64   `json:"omega"`
	Alpha          []float64 `json:"alpha" validate:"required,min=1,dive,required"`
	Beta           []float64 `json:"beta" validate:"required,min=1,dive,required"`
	LastVolatility float64   `json:"last_volatility" validate:"required,gt=0"`
	NSimulations   int       `json:"n_simulations" validate:"omitempty,min=1,max=1000000"`
	ForecastPeriod int       `json:"forecast_period" validate:"omitempty,min=1,max=3650"`
	SpotPrice      float64   `json:"spot_price" validate:"omitempty,gt=0"`
	Confidence     float64   `json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
	Seed           uint64    `json:"seed"`
}

// SimulateResponse summarizes the simulated price distribution.
type SimulateResponse struct {
	NSimulations   int     `json:"n_simulations"`
	ForecastPeriod int     `json:"forecast_period"`
	SpotPrice      float64 `json:"spot_price"`
	Confidence     float64 `json:"confidence_level"`
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
	Median         float64 `json:"median"`
	Stable         bool    `json:"stable"`
}

// SimulateHandler runs the Monte Carlo simulator on caller-supplied
// parameters.
type SimulateHandler struct {
	logger      *slog.Logger
	validate    *validator.Validate
	defaults    SimulateDefaults
	concurrency int
}

// SimulateDefaults fills unset request fields.
type SimulateDefaults struct {
	NSimulations   int
	ForecastPeriod int
	Confidence     float64
}

// NewSimulateHandler creates the handler.
func NewSimulateHandler(logger *slog.Logger, defaults SimulateDefaults, concurrency int) *SimulateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &SimulateHandler{
		logger:      logger,
		validate:    validator.New(),
		defaults:    defaults,
		concurrency: concurrency,
	}
}

// ServeHTTP handles POST /api/v1/simulate.
func (h *SimulateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Render(w, r, apierrors.ValidationFailedWithDetails(validationDetails(err)))
		return
	}
	h.applyDefaults(&req)

	params := simulation.Params{
		Mu:    req.Mu,
		Omega: req.Omega,
		Alpha: req.Alpha,
		Beta:  req.Beta,
	}

	sim := simulation.NewSimulator(req.Seed, h.logger)
	sim.SetConcurrency(h.concurrency)

	result, err := sim.Simulate(r.Context(), params, req.LastVolatility, req.NSimulations, req.ForecastPeriod)
	if err != nil {
		render.Render(w, r, mapSimulationError(err))
		return
	}

	proj, err := report.Project(result, req.SpotPrice, req.Confidence)
	if err != nil {
		if stderrors.Is(err, report.ErrDegenerateResult) {
			render.Render(w, r, apierrors.NumericDegeneracyWithError(err))
			return
		}
		render.Render(w, r, apierrors.ErrSimulationFailed)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SimulateResponse{
		NSimulations:   result.NSims(),
		ForecastPeriod: result.Horizon(),
		SpotPrice:      proj.SpotPrice,
		Confidence:     proj.Confidence,
		LowerBound:     proj.Lower,
		UpperBound:     proj.Upper,
		Median:         proj.Median,
		Stable:         params.Stable(),
	})
}

func (h *SimulateHandler) applyDefaults(req *SimulateRequest) {
	if req.NSimulations == 0 {
		req.NSimulations = h.defaults.NSimulations
	}
	if req.ForecastPeriod == 0 {
		req.ForecastPeriod = h.defaults.ForecastPeriod
	}
	if req.Confidence == 0 {
		req.Confidence = h.defaults.Confidence
	}
	if req.SpotPrice == 0 {
		// Without a spot price the projection is a pure growth factor.
		req.SpotPrice = 1
	}
}

func mapSimulationError(err error) *apierrors.APIError {
	switch {
	case stderrors.Is(err, simulation.ErrNumericDegeneracy):
		return apierrors.NumericDegeneracyWithError(err)
	case stderrors.Is(err, simulation.ErrInvalidParameter):
		return apierrors.InvalidRequestWithError(err)
	default:
		return apierrors.ErrSimulationFailed
	}
}

func validationDetails(err error) []map[string]string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []map[string]string{{"error": err.Error()}}
	}
	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return details
}
