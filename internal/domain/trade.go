package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord represents one executed fill. Records are append-only and never mutated.
// Corresponds to trade_records table in PostgreSQL.
type TradeRecord struct {
	TradeID      string // deterministic hash
	RunID        string // backtest run identifier
	Seq          int    // position in the run's trade log, 1-based
	Date         time.Time
	InstrumentID string
	Venue        Venue
	Side         Side

	QuotedPrice decimal.Decimal // price before slippage
	FillPrice   decimal.Decimal // price after slippage
	Shares      int64           // always positive

	// Costs
	Commission   decimal.Decimal
	StampTax     decimal.Decimal // sell only
	TransferFee  decimal.Decimal
	SlippageCost decimal.Decimal // |fill - quoted| * shares, informational

	// Outcome
	RealizedPnL  decimal.Decimal // sell only: (fill - avg_cost) * shares, before costs
	NetCashDelta decimal.Decimal // negative for buys, positive for sells
}

// Amount returns the gross traded value at the fill price.
func (t *TradeRecord) Amount() decimal.Decimal {
	return t.FillPrice.Mul(decimal.NewFromInt(t.Shares))
}

// TotalCost returns the explicit fee lines charged for the trade.
func (t *TradeRecord) TotalCost() decimal.Decimal {
	return t.Commission.Add(t.StampTax).Add(t.TransferFee)
}

// RejectReason classifies a trade that was attempted but not executed.
type RejectReason string

// Reject reason codes
const (
	RejectInsufficientCash   RejectReason = "INSUFFICIENT_CASH"
	RejectInsufficientShares RejectReason = "INSUFFICIENT_SHARES"
	RejectMissingPriceData   RejectReason = "MISSING_PRICE_DATA"
	RejectInvalidOrder       RejectReason = "INVALID_ORDER"
)

// RejectedTrade is the audit entry for a trade attempt that was skipped.
// Corresponds to rejected_trades table in PostgreSQL.
type RejectedTrade struct {
	RunID        string
	Date         time.Time
	InstrumentID string
	Side         Side
	Shares       int64
	QuotedPrice  decimal.Decimal // zero when no price was available
	Reason       RejectReason
	Detail       string
}
