// Package config loads application configuration: explicit defaults,
// overlaid with an optional YAML file, overlaid with VOLSIM_-prefixed
// environment variables, then validated.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envPrefix = "VOLSIM"

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	MarketData MarketDataConfig `yaml:"market_data" envconfig:"MARKET_DATA"`
	Model      ModelConfig      `yaml:"model" envconfig:"MODEL"`
	Simulation SimulationConfig `yaml:"simulation" envconfig:"SIMULATION"`
	Report     ReportConfig     `yaml:"report" envconfig:"REPORT"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`

	// AllowAllWSOrigins disables the same-origin check on the progress
	// websocket. Off by default.
	AllowAllWSOrigins bool `yaml:"allow_all_ws_origins" envconfig:"ALLOW_ALL_WS_ORIGINS"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// MarketDataConfig controls the price-history download.
type MarketDataConfig struct {
	Symbol        string `yaml:"symbol" envconfig:"SYMBOL"`
	LookbackYears int    `yaml:"lookback_years" envconfig:"LOOKBACK_YEARS"`
}

// ModelConfig controls EGARCH order selection.
type ModelConfig struct {
	MaxP int `yaml:"max_p" envconfig:"MAX_P"`
	MaxQ int `yaml:"max_q" envconfig:"MAX_Q"`
}

// SimulationConfig controls the Monte Carlo ensemble.
type SimulationConfig struct {
	NSimulations   int    `yaml:"n_simulations" envconfig:"N_SIMULATIONS"`
	ForecastPeriod int    `yaml:"forecast_period" envconfig:"FORECAST_PERIOD"`
	Seed           uint64 `yaml:"seed" envconfig:"SEED"`
	Concurrency    int    `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

// ReportConfig controls report generation.
type ReportConfig struct {
	OutputDir       string  `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	ConfidenceLevel float64 `yaml:"confidence_level" envconfig:"CONFIDENCE_LEVEL"`
	Histogram       bool    `yaml:"histogram" envconfig:"HISTOGRAM"`
	Workbook        bool    `yaml:"workbook" envconfig:"WORKBOOK"`
	CSV             bool    `yaml:"csv" envconfig:"CSV"`
}

// Default returns the configuration used when neither file nor
// environment overrides a value. The analysis defaults mirror the
// reference study: 10000 paths, 21 trading days, 99% confidence.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/volsim.log",
		},
		MarketData: MarketDataConfig{
			Symbol:        "^bvsp",
			LookbackYears: 20,
		},
		Model: ModelConfig{
			MaxP: 2,
			MaxQ: 2,
		},
		Simulation: SimulationConfig{
			NSimulations:   10000,
			ForecastPeriod: 21,
			Concurrency:    4,
		},
		Report: ReportConfig{
			OutputDir:       "reports",
			ConfidenceLevel: 0.99,
			Histogram:       true,
			Workbook:        true,
		},
	}
}

// Load reads configuration from volsim.yml (if present) and the
// environment.
func Load() (*Config, error) {
	return LoadFrom("volsim.yml")
}

// LoadFrom reads configuration from the given YAML file (skipped if it
// does not exist), overlays environment variables, and validates the
// result.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Environment wins over file values.
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("unknown log output %q", c.Logging.Output)
	}
	if c.MarketData.Symbol == "" {
		return fmt.Errorf("market data symbol must not be empty")
	}
	if c.MarketData.LookbackYears < 1 {
		return fmt.Errorf("lookback years must be >= 1, got %d", c.MarketData.LookbackYears)
	}
	if c.Model.MaxP < 1 || c.Model.MaxQ < 1 {
		return fmt.Errorf("model order bounds must be >= 1, got (%d,%d)", c.Model.MaxP, c.Model.MaxQ)
	}
	if c.Simulation.NSimulations < 1 {
		return fmt.Errorf("n_simulations must be >= 1, got %d", c.Simulation.NSimulations)
	}
	if c.Simulation.ForecastPeriod < 1 {
		return fmt.Errorf("forecast_period must be >= 1, got %d", c.Simulation.ForecastPeriod)
	}
	if c.Simulation.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Simulation.Concurrency)
	}
	if c.Report.ConfidenceLevel <= 0 || c.Report.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0,1), got %v", c.Report.ConfidenceLevel)
	}
	return nil
}

// Lookback returns the market data lookback as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.MarketData.LookbackYears) * 365 * 24 * time.Hour
}
