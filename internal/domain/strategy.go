package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceMetrics summarises a finished run.
type PerformanceMetrics struct {
	TotalReturn          float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	SortinoRatio         float64
	MaxDrawdown          float64 // fraction of running peak, 0..1
	CalmarRatio          float64
	WinRate              float64 // winning sells / closed trades
	// ProfitFactor is gross realized profit / gross realized loss. It is +Inf
	// when there are winning sells and no losing ones, 0 without wins.
	ProfitFactor float64
	TradeCount   int // executed fills, buys and sells

	// InsufficientData marks a run too short for ratios. Only TradeCount,
	// TradingDays and FinalEquity are meaningful then.
	InsufficientData bool

	// Supplemental
	ClosedTrades int
	TradingDays  int
	FinalEquity  decimal.Decimal
	TotalCosts   decimal.Decimal // commission + stamp tax + transfer fee
}

// MarshalJSON writes an unbounded ProfitFactor as null.
func (m PerformanceMetrics) MarshalJSON() ([]byte, error) {
	type plain PerformanceMetrics
	out := struct {
		plain
		ProfitFactor *float64
	}{plain: plain(m)}
	if !math.IsInf(m.ProfitFactor, 0) {
		pf := m.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// BacktestRun is the persisted summary of one run.
// Corresponds to backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID          string
	StrategyID     string
	ConfigHash     string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital decimal.Decimal
	Metrics        PerformanceMetrics
	RejectionCount int
	CreatedAt      time.Time
}

// StrategyConfig represents strategy configuration parameters.
type StrategyConfig struct {
	StrategyType string   // "BUY_AND_HOLD" | "MA_CROSS" | "ORDER_LIST"
	Universe     []string // instrument IDs

	// Fraction of equity to keep invested (BUY_AND_HOLD, MA_CROSS)
	InvestFraction *decimal.Decimal

	// MA_CROSS parameters
	FastWindow *int
	SlowWindow *int

	// ORDER_LIST parameters, keyed by YYYY-MM-DD
	Schedule map[string][]Order
}

// Strategy type constants
const (
	StrategyTypeBuyAndHold = "BUY_AND_HOLD"
	StrategyTypeMACross    = "MA_CROSS"
	StrategyTypeOrderList  = "ORDER_LIST"
)
