// Command volsim runs the full analysis once: download the index
// history, select and fit an EGARCH model, Monte-Carlo-simulate the
// next month of returns, and print the percentile confidence interval
// for the projected price, writing report artifacts alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
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
)

func main() {
	configPath := flag.String("config", "volsim.yml", "path to YAML config file (optional)")
	symbol := flag.String("symbol", "", "symbol to analyze (overrides config)")
	sims := flag.Int("sims", 0, "number of Monte Carlo paths (overrides config)")
	horizon := flag.Int("horizon", 0, "forecast period in trading days (overrides config)")
	confidence := flag.Float64("confidence", 0, "two-sided confidence level (overrides config)")
	seed := flag.Uint64("seed", 0, "base RNG seed; 0 derives one from the clock")
	outDir := flag.String("out", "", "output directory for reports (overrides config)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *symbol, *sims, *horizon, *confidence, *outDir)

	logger, closeLog, err := infrastructure.InitLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed, logger); err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed uint64, logger *slog.Logger) error {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	simulator := simulation.NewSimulator(seed, logger)
	simulator.SetConcurrency(cfg.Simulation.Concurrency)

	steps := []operations.Step{
		&operations.FetchStep{
			Client:   marketdata.NewClient(logger),
			Symbol:   cfg.MarketData.Symbol,
			Lookback: cfg.Lookback(),
		},
		&operations.FitStep{
			Fitter: egarch.NewFitter(logger),
			MaxP:   cfg.Model.MaxP,
			MaxQ:   cfg.Model.MaxQ,
		},
		&operations.SimulateStep{
			Simulator:      simulator,
			NSimulations:   cfg.Simulation.NSimulations,
			ForecastPeriod: cfg.Simulation.ForecastPeriod,
		},
		&operations.ReportStep{
			OutputDir:     cfg.Report.OutputDir,
			Confidence:    cfg.Report.ConfidenceLevel,
			SaveHistogram: cfg.Report.Histogram,
			SaveWorkbook:  cfg.Report.Workbook,
			SaveCSV:       cfg.Report.CSV,
		},
	}

	manager := operations.NewManager(logger, nil, consoleSink{})
	state := &operations.State{}
	if err := manager.Run(ctx, "cli", state, steps, operations.NewStepStates(steps)); err != nil {
		return err
	}

	printResults(state)
	return nil
}

// consoleSink prints step transitions for interactive runs.
type consoleSink struct{}

func (consoleSink) Publish(e operations.Event) {
	if e.Status == operations.StatusRunning {
		fmt.Printf("%s...\n", e.StepName)
	}
}

func printResults(state *operations.State) {
	proj := state.Projection
	fmt.Println("\nResults:")
	fmt.Printf("Current %s: %.2f\n", state.Symbol, state.SpotPrice)
	fmt.Printf("%.0f%% confidence interval for %d days ahead:\n", proj.Confidence*100, proj.Horizon)
	fmt.Printf("Lower bound: %.2f\n", proj.Lower)
	fmt.Printf("Upper bound: %.2f\n", proj.Upper)
	for _, path := range state.OutputFiles {
		fmt.Printf("Report written: %s\n", path)
	}
}

func applyOverrides(cfg *config.Config, symbol string, sims, horizon int, confidence float64, outDir string) {
	if symbol != "" {
		cfg.MarketData.Symbol = symbol
	}
	if sims > 0 {
		cfg.Simulation.NSimulations = sims
	}
	if horizon > 0 {
		cfg.Simulation.ForecastPeriod = horizon
	}
	if confidence > 0 && confidence < 1 {
		cfg.Report.ConfidenceLevel = confidence
	}
	if outDir != "" {
		cfg.Report.OutputDir = outDir
	}
}
