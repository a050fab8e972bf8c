// Command server exposes the simulator and the analysis pipeline over
// an HTTP API with progress streaming, Prometheus metrics and graceful
// shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"volsim/internal/config"
	"volsim/internal/egarch"
	"volsim/internal/infrastructure"
	"volsim/internal/marketdata"
	"volsim/internal/operations"
	"volsim/internal/simulation"
	transport "volsim/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := infrastructure.InitLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracing, err := infrastructure.InitTracing(ctx, true)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	shutdownMetrics, err := infrastructure.InitMetrics(true)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}()

	hub := transport.NewHub(logger)
	hub.SetAllowAllOrigins(cfg.Server.AllowAllWSOrigins)
	manager := operations.NewManager(logger, tracer, hub)
	coordinator := operations.NewCoordinator(manager, cfg.Server.OperationTimeout, logger)

	client := marketdata.NewClient(logger)
	fitter := egarch.NewFitter(logger)

	buildSteps := func(req transport.PipelineRequest) []operations.Step {
		symbol := cfg.MarketData.Symbol
		if req.Symbol != "" {
			symbol = req.Symbol
		}
		nSims := cfg.Simulation.NSimulations
		if req.NSimulations > 0 {
			nSims = req.NSimulations
		}
		horizon := cfg.Simulation.ForecastPeriod
		if req.ForecastPeriod > 0 {
			horizon = req.ForecastPeriod
		}
		confidence := cfg.Report.ConfidenceLevel
		if req.Confidence > 0 {
			confidence = req.Confidence
		}

		simulator := simulation.NewSimulator(uint64(time.Now().UnixNano()), logger)
		simulator.SetConcurrency(cfg.Simulation.Concurrency)

		return []operations.Step{
			&operations.FetchStep{Client: client, Symbol: symbol, Lookback: cfg.Lookback()},
			&operations.FitStep{Fitter: fitter, MaxP: cfg.Model.MaxP, MaxQ: cfg.Model.MaxQ},
			&operations.SimulateStep{Simulator: simulator, NSimulations: nSims, ForecastPeriod: horizon},
			&operations.ReportStep{
				OutputDir:     cfg.Report.OutputDir,
				Confidence:    confidence,
				SaveHistogram: cfg.Report.Histogram,
				SaveWorkbook:  cfg.Report.Workbook,
				SaveCSV:       cfg.Report.CSV,
			},
		}
	}

	router := transport.NewRouter(transport.Deps{
		Logger:      logger,
		Coordinator: coordinator,
		Hub:         hub,
		BuildSteps:  buildSteps,
		SimDefaults: transport.SimulateDefaults{
			NSimulations:   cfg.Simulation.NSimulations,
			ForecastPeriod: cfg.Simulation.ForecastPeriod,
			Confidence:     cfg.Report.ConfidenceLevel,
		},
		SimConcurrency: cfg.Simulation.Concurrency,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
