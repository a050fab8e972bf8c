package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "^bvsp", cfg.MarketData.Symbol)
	assert.Equal(t, 20, cfg.MarketData.LookbackYears)
	assert.Equal(t, 10000, cfg.Simulation.NSimulations)
	assert.Equal(t, 21, cfg.Simulation.ForecastPeriod)
	assert.Equal(t, 0.99, cfg.Report.ConfidenceLevel)
	assert.Equal(t, 2, cfg.Model.MaxP)
	assert.Equal(t, 20*365*24*time.Hour, cfg.Lookback())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsim.yml")
	content := `
market_data:
  symbol: "^gspc"
  lookback_years: 5
simulation:
  n_simulations: 2000
  forecast_period: 10
report:
  confidence_level: 0.95
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "^gspc", cfg.MarketData.Symbol)
	assert.Equal(t, 5, cfg.MarketData.LookbackYears)
	assert.Equal(t, 2000, cfg.Simulation.NSimulations)
	assert.Equal(t, 10, cfg.Simulation.ForecastPeriod)
	assert.Equal(t, 0.95, cfg.Report.ConfidenceLevel)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsim.yml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  n_simulations: 2000\n"), 0o644))

	t.Setenv("VOLSIM_SIMULATION_N_SIMULATIONS", "500")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Simulation.NSimulations)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsim.yml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFrom("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad_port", func(c *Config) { c.Server.Port = 0 }},
		{"bad_level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad_format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad_output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"empty_symbol", func(c *Config) { c.MarketData.Symbol = "" }},
		{"bad_lookback", func(c *Config) { c.MarketData.LookbackYears = 0 }},
		{"bad_order", func(c *Config) { c.Model.MaxP = 0 }},
		{"bad_sims", func(c *Config) { c.Simulation.NSimulations = 0 }},
		{"bad_horizon", func(c *Config) { c.Simulation.ForecastPeriod = 0 }},
		{"bad_concurrency", func(c *Config) { c.Simulation.Concurrency = 0 }},
		{"confidence_zero", func(c *Config) { c.Report.ConfidenceLevel = 0 }},
		{"confidence_one", func(c *Config) { c.Report.ConfidenceLevel = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
