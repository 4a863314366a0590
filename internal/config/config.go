// Package config loads run configuration from YAML with ASHARE_ environment
// overrides and converts it into the typed configs of the simulation packages.
//
// Example:
//
//	backtest:
//	  initialCapital: "1000000"
//	  start: 2023-01-03
//	  end: 2023-12-29
//	  universe: [600000.SH, 000001.SZ]
//	  executionMode: next_open   # next_open|same_close
//	  gapPolicy: skip            # skip|fail
//	  lotSize: 100
//	costs:
//	  scenario: realistic        # zero|realistic|pessimistic|pre_2023
//	  stampTaxRate: "0.0005"     # overrides the scenario value
//	strategy:
//	  type: MA_CROSS
//	  fastWindow: 5
//	  slowWindow: 20
//	data:
//	  source: csv                # csv|clickhouse|memory
//	  csvPath: ./data/bars.csv
//	storage:
//	  backend: memory            # memory|postgres
//	logging:
//	  level: info
//	  json: false
//
// Decimal-valued settings are quoted strings so they parse exactly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for unreadable or inconsistent configuration.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "ASHARE_"

// Config is the root configuration.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Costs    CostsConfig    `yaml:"costs"`
	Strategy StrategyConfig `yaml:"strategy"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Data     DataConfig     `yaml:"data"`
	Storage  StorageConfig  `yaml:"storage"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// BacktestConfig holds the simulated account and period.
type BacktestConfig struct {
	InitialCapital string   `yaml:"initialCapital"`
	Start          string   `yaml:"start"` // YYYY-MM-DD
	End            string   `yaml:"end"`   // YYYY-MM-DD
	Universe       []string `yaml:"universe"`
	Calendar       []string `yaml:"calendar"` // optional expected trading days
	ExecutionMode  string   `yaml:"executionMode"`
	GapPolicy      string   `yaml:"gapPolicy"`
	LotSize        int64    `yaml:"lotSize"`
}

// CostsConfig starts from a named scenario and overrides individual rates.
type CostsConfig struct {
	Scenario         string            `yaml:"scenario"`
	CommissionRate   string            `yaml:"commissionRate"`
	MinCommission    string            `yaml:"minCommission"`
	StampTaxRate     string            `yaml:"stampTaxRate"`
	SlippageRate     string            `yaml:"slippageRate"`
	TransferFeeRates map[string]string `yaml:"transferFeeRates"` // venue -> rate
}

// StrategyConfig selects and parameterises the signal source.
type StrategyConfig struct {
	Type           string                   `yaml:"type"`
	InvestFraction string                   `yaml:"investFraction"`
	FastWindow     int                      `yaml:"fastWindow"`
	SlowWindow     int                      `yaml:"slowWindow"`
	Schedule       map[string][]OrderConfig `yaml:"schedule"` // YYYY-MM-DD -> orders
}

// OrderConfig is one scheduled explicit order.
type OrderConfig struct {
	Instrument string `yaml:"instrument"`
	Side       string `yaml:"side"`
	Shares     int64  `yaml:"shares"`
}

// MetricsConfig controls performance analysis.
type MetricsConfig struct {
	RiskFreeRate       float64 `yaml:"riskFreeRate"`
	TradingDaysPerYear int     `yaml:"tradingDaysPerYear"`
}

// DataConfig selects the price series provider.
type DataConfig struct {
	Source        string `yaml:"source"` // csv|clickhouse|memory
	CSVPath       string `yaml:"csvPath"`
	ClickHouseDSN string `yaml:"clickhouseDSN"`
}

// StorageConfig selects where run results are persisted.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // memory|postgres
	PostgresDSN string `yaml:"postgresDSN"`
	Persist     bool   `yaml:"persist"` // write results to Backend; memory otherwise
}

// SweepConfig is the MA_CROSS parameter grid.
type SweepConfig struct {
	FastWindows []int `yaml:"fastWindows"`
	SlowWindows []int `yaml:"slowWindows"`
	Parallelism int   `yaml:"parallelism"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
	JSON  bool   `yaml:"json"`
}

// ServerConfig controls the optional /metrics listener.
type ServerConfig struct {
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns a configuration that runs out of the box against a CSV file.
func Default() Config {
	return Config{
		Backtest: BacktestConfig{
			InitialCapital: "1000000",
			ExecutionMode:  "next_open",
			GapPolicy:      "skip",
			LotSize:        100,
		},
		Costs: CostsConfig{
			Scenario: "realistic",
		},
		Strategy: StrategyConfig{
			Type: "BUY_AND_HOLD",
		},
		Metrics: MetricsConfig{
			TradingDaysPerYear: 252,
		},
		Data: DataConfig{
			Source:  "csv",
			CSVPath: "./data/bars.csv",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Sweep: SweepConfig{
			FastWindows: []int{3, 5, 10},
			SlowWindows: []int{20, 30, 60},
			Parallelism: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Read is Load without validation, for callers that layer flags on top.
func Read(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	c.applyEnv(EnvPrefix)
	return &c, nil
}

// Validate checks enumerations and that every typed conversion succeeds.
func (c *Config) Validate() error {
	if _, err := c.BacktestConfig(); err != nil {
		return err
	}
	if _, err := c.StrategyConfig(); err != nil {
		return err
	}

	switch strings.ToLower(c.Data.Source) {
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("%w: data.csvPath is required for csv source", ErrInvalidConfig)
		}
	case "clickhouse":
		if c.Data.ClickHouseDSN == "" {
			return fmt.Errorf("%w: data.clickhouseDSN is required for clickhouse source", ErrInvalidConfig)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: data.source %q (allowed: csv|clickhouse|memory)", ErrInvalidConfig, c.Data.Source)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgresDSN is required for postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q (allowed: memory|postgres)", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Metrics.TradingDaysPerYear < 0 {
		return fmt.Errorf("%w: metrics.tradingDaysPerYear must be >= 0", ErrInvalidConfig)
	}
	if c.Sweep.Parallelism < 0 {
		return fmt.Errorf("%w: sweep.parallelism must be >= 0", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}
