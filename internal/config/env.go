package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv reads variables starting with prefix and overrides the config.
func (c *Config) applyEnv(prefix string) {
	// Backtest
	c.Backtest.InitialCapital = pickStr(os.Getenv(prefix+"BACKTEST_INITIAL_CAPITAL"), c.Backtest.InitialCapital)
	c.Backtest.Start = pickStr(os.Getenv(prefix+"BACKTEST_START"), c.Backtest.Start)
	c.Backtest.End = pickStr(os.Getenv(prefix+"BACKTEST_END"), c.Backtest.End)
	if v := os.Getenv(prefix + "BACKTEST_UNIVERSE"); v != "" {
		c.Backtest.Universe = splitCSV(v)
	}
	c.Backtest.ExecutionMode = pickStr(os.Getenv(prefix+"BACKTEST_EXECUTION_MODE"), c.Backtest.ExecutionMode)
	c.Backtest.GapPolicy = pickStr(os.Getenv(prefix+"BACKTEST_GAP_POLICY"), c.Backtest.GapPolicy)
	c.Backtest.LotSize = pickInt64(os.Getenv(prefix+"BACKTEST_LOT_SIZE"), c.Backtest.LotSize)

	// Costs
	c.Costs.Scenario = pickStr(os.Getenv(prefix+"COSTS_SCENARIO"), c.Costs.Scenario)
	c.Costs.CommissionRate = pickStr(os.Getenv(prefix+"COSTS_COMMISSION_RATE"), c.Costs.CommissionRate)
	c.Costs.MinCommission = pickStr(os.Getenv(prefix+"COSTS_MIN_COMMISSION"), c.Costs.MinCommission)
	c.Costs.StampTaxRate = pickStr(os.Getenv(prefix+"COSTS_STAMP_TAX_RATE"), c.Costs.StampTaxRate)
	c.Costs.SlippageRate = pickStr(os.Getenv(prefix+"COSTS_SLIPPAGE_RATE"), c.Costs.SlippageRate)

	// Strategy
	c.Strategy.Type = pickStr(os.Getenv(prefix+"STRATEGY_TYPE"), c.Strategy.Type)
	c.Strategy.InvestFraction = pickStr(os.Getenv(prefix+"STRATEGY_INVEST_FRACTION"), c.Strategy.InvestFraction)
	c.Strategy.FastWindow = pickInt(os.Getenv(prefix+"STRATEGY_FAST_WINDOW"), c.Strategy.FastWindow)
	c.Strategy.SlowWindow = pickInt(os.Getenv(prefix+"STRATEGY_SLOW_WINDOW"), c.Strategy.SlowWindow)

	// Metrics
	c.Metrics.RiskFreeRate = pickFloat(os.Getenv(prefix+"METRICS_RISK_FREE_RATE"), c.Metrics.RiskFreeRate)
	c.Metrics.TradingDaysPerYear = pickInt(os.Getenv(prefix+"METRICS_TRADING_DAYS_PER_YEAR"), c.Metrics.TradingDaysPerYear)

	// Data
	c.Data.Source = pickStr(os.Getenv(prefix+"DATA_SOURCE"), c.Data.Source)
	c.Data.CSVPath = pickStr(os.Getenv(prefix+"DATA_CSV_PATH"), c.Data.CSVPath)
	c.Data.ClickHouseDSN = pickStr(os.Getenv(prefix+"DATA_CLICKHOUSE_DSN"), c.Data.ClickHouseDSN)

	// Storage
	c.Storage.Backend = pickStr(os.Getenv(prefix+"STORAGE_BACKEND"), c.Storage.Backend)
	c.Storage.PostgresDSN = pickStr(os.Getenv(prefix+"STORAGE_POSTGRES_DSN"), c.Storage.PostgresDSN)
	c.Storage.Persist = pickBool(os.Getenv(prefix+"STORAGE_PERSIST"), c.Storage.Persist)

	// Sweep
	c.Sweep.Parallelism = pickInt(os.Getenv(prefix+"SWEEP_PARALLELISM"), c.Sweep.Parallelism)

	// Logging
	c.Logging.Level = pickStr(os.Getenv(prefix+"LOG_LEVEL"), c.Logging.Level)
	c.Logging.JSON = pickBool(os.Getenv(prefix+"LOG_JSON"), c.Logging.JSON)

	// Server
	c.Server.MetricsAddr = pickStr(os.Getenv(prefix+"METRICS_ADDR"), c.Server.MetricsAddr)
}

func pickStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func pickInt(v string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return n
	}
	return def
}

func pickInt64(v string, def int64) int64 {
	if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		return n
	}
	return def
}

func pickFloat(v string, def float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f
	}
	return def
}

func pickBool(v string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		return b
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
