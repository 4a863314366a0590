package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityCurvePoint is the day-end valuation of a run.
// Exactly one point per simulated trading day, ordered by date.
// Corresponds to equity_curve table in PostgreSQL.
type EquityCurvePoint struct {
	Date          time.Time
	Cash          decimal.Decimal
	HoldingsValue decimal.Decimal
	TotalEquity   decimal.Decimal // Cash + HoldingsValue
	DailyReturn   float64         // TotalEquity[t]/TotalEquity[t-1] - 1
}
