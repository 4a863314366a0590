package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// Report is the rendered summary of one backtest run.
type Report struct {
	GeneratedAt time.Time

	Run     domain.BacktestRun
	Metrics domain.PerformanceMetrics

	DataSummary DataSummary

	// Sorted by reason
	Rejections []RejectionCountRow

	// Sorted by instrument_id
	Instruments []InstrumentRow

	// Other runs of the same strategy, sorted by created_at
	RelatedRuns []RunComparisonRow
}

// DataSummary describes the simulated period and activity.
type DataSummary struct {
	TradingDays    int
	TotalTrades    int
	Buys           int
	Sells          int
	Rejections     int
	DateRangeStart time.Time
	DateRangeEnd   time.Time
	PeakEquity     decimal.Decimal
	FinalEquity    decimal.Decimal
}

// RejectionCountRow counts rejected attempts per reason.
type RejectionCountRow struct {
	Reason domain.RejectReason
	Count  int
}

// InstrumentRow aggregates fills per instrument.
type InstrumentRow struct {
	InstrumentID string
	Venue        domain.Venue
	Buys         int
	Sells        int
	SharesBought int64
	SharesSold   int64
	RealizedPnL  decimal.Decimal
	Costs        decimal.Decimal // commission + stamp tax + transfer fee
}

// RunComparisonRow lists headline metrics of one run.
type RunComparisonRow struct {
	RunID       string
	StrategyID  string
	ConfigHash  string
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
	TradeCount  int

	InsufficientData bool // ratios are placeholders
}
