package http

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "volsim/internal/errors"
	"volsim/internal/operations"
)

// PipelineRequest optionally overrides the configured pipeline inputs.
type PipelineRequest struct {
	Symbol         string  `json:"symbol" validate:"omitempty,max=16"`
	NSimulations   int     `json:"n_simulations" validate:"omitempty,min=1,max=1000000"`
	ForecastPeriod int     `json:"forecast_period" validate:"omitempty,min=1,max=3650"`
	Confidence     float64 `json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
}

// StepsFactory assembles the pipeline for one run, applying request
// overrides to the configured defaults.
type StepsFactory func(req PipelineRequest) []operations.Step

// OperationsHandler launches and inspects pipeline runs.
type OperationsHandler struct {
	logger      *slog.Logger
	validate    *validator.Validate
	coordinator *operations.Coordinator
	buildSteps  StepsFactory
}

// NewOperationsHandler creates the handler.
func NewOperationsHandler(logger *slog.Logger, coordinator *operations.Coordinator, buildSteps StepsFactory) *OperationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		logger:      logger,
		validate:    validator.New(),
		coordinator: coordinator,
		buildSteps:  buildSteps,
	}
}

// Start handles POST /api/v1/operations. An empty body runs the
// configured defaults.
func (h *OperationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req PipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Render(w, r, apierrors.ValidationFailedWithDetails(validationDetails(err)))
		return
	}

	id := h.coordinator.Start(h.buildSteps(req))
	h.logger.InfoContext(r.Context(), "operation launched", "operation_id", id, "symbol", req.Symbol)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"operation_id": id})
}

// Get handles GET /api/v1/operations/{id}.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.coordinator.Get(id)
	if err != nil {
		render.Render(w, r, apierrors.ErrOperationNotFound)
		return
	}
	render.JSON(w, r, snap)
}

// List handles GET /api/v1/operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.coordinator.List())
}
