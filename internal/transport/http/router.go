package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"volsim/internal/infrastructure"
	custommw "volsim/internal/middleware"
	"volsim/internal/operations"
)

// Deps carries everything the router needs.
type Deps struct {
	Logger         *slog.Logger
	Coordinator    *operations.Coordinator
	Hub            *Hub
	BuildSteps     StepsFactory
	SimDefaults    SimulateDefaults
	SimConcurrency int
}

// NewRouter builds the chi router with the full middleware chain and
// all API routes.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(custommw.Logger(logger))
	r.Use(custommw.Metrics)
	r.Use(custommw.Recoverer(logger))

	simulate := NewSimulateHandler(logger, deps.SimDefaults, deps.SimConcurrency)
	ops := NewOperationsHandler(logger, deps.Coordinator, deps.BuildSteps)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/simulate", simulate.ServeHTTP)
		r.Post("/operations", ops.Start)
		r.Get("/operations", ops.List)
		r.Get("/operations/{id}", ops.Get)
	})

	if deps.Hub != nil {
		r.Get("/ws/operations", deps.Hub.ServeHTTP)
	}

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// healthz reports liveness.
func healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "ok",
		"service": infrastructure.ServiceName,
		"version": infrastructure.ServiceVersion,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
