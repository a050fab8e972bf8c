package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"volsim/internal/egarch"
	"volsim/internal/marketdata"
	"volsim/internal/report"
	"volsim/internal/simulation"
)

// ErrMissingState indicates a step ran without its required inputs,
// usually a pipeline assembled in the wrong order.
var ErrMissingState = errors.New("missing pipeline state")

// FetchStep downloads the daily close history for the configured
// symbol and derives the log-return series.
type FetchStep struct {
	Client   *marketdata.Client
	Symbol   string
	Lookback time.Duration
}

func (s *FetchStep) ID() string   { return "fetch" }
func (s *FetchStep) Name() string { return "Fetch market data" }

func (s *FetchStep) Validate(state *State) error {
	if s.Client == nil {
		return fmt.Errorf("%w: no market data client", ErrMissingState)
	}
	if s.Symbol == "" {
		return fmt.Errorf("%w: no symbol", ErrMissingState)
	}
	return nil
}

func (s *FetchStep) Execute(ctx context.Context, state *State) error {
	lookback := s.Lookback
	if lookback <= 0 {
		lookback = 20 * 365 * 24 * time.Hour
	}
	to := time.Now()
	from := to.Add(-lookback)

	quotes, err := s.Client.DailyCloses(ctx, s.Symbol, from, to)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", s.Symbol, err)
	}

	returns, err := egarch.LogReturns(marketdata.Closes(quotes))
	if err != nil {
		return fmt.Errorf("compute returns: %w", err)
	}

	state.Symbol = s.Symbol
	state.Quotes = quotes
	state.Returns = returns
	state.SpotPrice = quotes[len(quotes)-1].Close
	return nil
}

// FitStep selects the EGARCH order by AIC and fits the model.
type FitStep struct {
	Fitter *egarch.Fitter
	MaxP   int
	MaxQ   int
}

func (s *FitStep) ID() string   { return "fit" }
func (s *FitStep) Name() string { return "Fit EGARCH model" }

func (s *FitStep) Validate(state *State) error {
	if s.Fitter == nil {
		return fmt.Errorf("%w: no fitter", ErrMissingState)
	}
	if len(state.Returns) == 0 {
		return fmt.Errorf("%w: no return series (fetch step must run first)", ErrMissingState)
	}
	return nil
}

func (s *FitStep) Execute(ctx context.Context, state *State) error {
	model, err := s.Fitter.SelectOrder(ctx, state.Returns, s.MaxP, s.MaxQ)
	if err != nil {
		return fmt.Errorf("fit model: %w", err)
	}
	state.Model = model
	return nil
}

// SimulateStep runs the Monte Carlo ensemble from the fitted model.
type SimulateStep struct {
	Simulator      *simulation.Simulator
	NSimulations   int
	ForecastPeriod int
}

func (s *SimulateStep) ID() string   { return "simulate" }
func (s *SimulateStep) Name() string { return "Monte Carlo simulation" }

func (s *SimulateStep) Validate(state *State) error {
	if s.Simulator == nil {
		return fmt.Errorf("%w: no simulator", ErrMissingState)
	}
	if state.Model == nil {
		return fmt.Errorf("%w: no fitted model (fit step must run first)", ErrMissingState)
	}
	return nil
}

func (s *SimulateStep) Execute(ctx context.Context, state *State) error {
	result, err := s.Simulator.Simulate(ctx, state.Model.Params, state.Model.LastVolatility(), s.NSimulations, s.ForecastPeriod)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	state.Result = result
	return nil
}

// ReportStep projects prices, computes the confidence interval and
// writes the configured artifacts (histogram PNG, Excel workbook, CSV).
type ReportStep struct {
	OutputDir  string
	Confidence float64

	SaveHistogram bool
	SaveWorkbook  bool
	SaveCSV       bool
}

func (s *ReportStep) ID() string   { return "report" }
func (s *ReportStep) Name() string { return "Generate report" }

func (s *ReportStep) Validate(state *State) error {
	if state.Result == nil {
		return fmt.Errorf("%w: no simulation result (simulate step must run first)", ErrMissingState)
	}
	if state.SpotPrice <= 0 {
		return fmt.Errorf("%w: no spot price", ErrMissingState)
	}
	return nil
}

func (s *ReportStep) Execute(ctx context.Context, state *State) error {
	proj, err := report.Project(state.Result, state.SpotPrice, s.Confidence)
	if err != nil {
		return fmt.Errorf("project prices: %w", err)
	}
	state.Projection = proj

	if s.OutputDir == "" || !(s.SaveHistogram || s.SaveWorkbook || s.SaveCSV) {
		return nil
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if s.SaveHistogram {
		path := filepath.Join(s.OutputDir, fmt.Sprintf("%s_prediction.png", sanitize(state.Symbol)))
		title := fmt.Sprintf("Distribution of predicted %s values (%d days ahead)", state.Symbol, proj.Horizon)
		if err := report.SaveHistogram(proj, title, path); err != nil {
			return err
		}
		state.OutputFiles = append(state.OutputFiles, path)
	}
	if s.SaveWorkbook {
		path := filepath.Join(s.OutputDir, fmt.Sprintf("%s_forecast.xlsx", sanitize(state.Symbol)))
		if err := report.SaveWorkbook(proj, state.Symbol, path); err != nil {
			return err
		}
		state.OutputFiles = append(state.OutputFiles, path)
	}
	if s.SaveCSV {
		path := filepath.Join(s.OutputDir, fmt.Sprintf("%s_simulated_prices.csv", sanitize(state.Symbol)))
		if err := report.SavePricesCSV(proj, path); err != nil {
			return err
		}
		state.OutputFiles = append(state.OutputFiles, path)
	}
	return nil
}

// sanitize strips characters that are unsafe in file names, e.g. the
// caret in index symbols like ^BVSP.
func sanitize(symbol string) string {
	out := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "series"
	}
	return string(out)
}
