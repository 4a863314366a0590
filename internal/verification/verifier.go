// Package verification re-derives a finished run from its trade log and checks
// that the stored records and equity curve are reproduced exactly.
package verification

import (
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Ref      string      // trade ID or curve date
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationReport contains the result of verifying one run.
type VerificationReport struct {
	RunID           string
	TotalTrades     int
	MatchedTrades   int
	TotalPoints     int
	MatchedPoints   int
	InvariantBreaks int // points where cash + holdings != total equity
	Divergences     []FieldDivergence
}

// Match reports whether every trade and curve point was reproduced.
func (r *VerificationReport) Match() bool {
	return len(r.Divergences) == 0 && r.InvariantBreaks == 0
}

// CompareTradeRecords compares two trade records and returns divergences.
// Money fields are compared exactly.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{
			Ref:      stored.TradeID,
			Field:    field,
			Expected: expected,
			Actual:   actual,
		})
	}

	if stored.TradeID != replayed.TradeID {
		add("TradeID", stored.TradeID, replayed.TradeID)
	}
	if stored.Seq != replayed.Seq {
		add("Seq", stored.Seq, replayed.Seq)
	}
	if !stored.Date.Equal(replayed.Date) {
		add("Date", stored.Date, replayed.Date)
	}
	if stored.InstrumentID != replayed.InstrumentID {
		add("InstrumentID", stored.InstrumentID, replayed.InstrumentID)
	}
	if stored.Venue != replayed.Venue {
		add("Venue", stored.Venue, replayed.Venue)
	}
	if stored.Side != replayed.Side {
		add("Side", stored.Side, replayed.Side)
	}
	if stored.Shares != replayed.Shares {
		add("Shares", stored.Shares, replayed.Shares)
	}

	money := []struct {
		field            string
		stored, replayed decimal.Decimal
	}{
		{"QuotedPrice", stored.QuotedPrice, replayed.QuotedPrice},
		{"FillPrice", stored.FillPrice, replayed.FillPrice},
		{"Commission", stored.Commission, replayed.Commission},
		{"StampTax", stored.StampTax, replayed.StampTax},
		{"TransferFee", stored.TransferFee, replayed.TransferFee},
		{"SlippageCost", stored.SlippageCost, replayed.SlippageCost},
		{"RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL},
		{"NetCashDelta", stored.NetCashDelta, replayed.NetCashDelta},
	}
	for _, m := range money {
		if !m.stored.Equal(m.replayed) {
			add(m.field, m.stored.String(), m.replayed.String())
		}
	}

	return divergences
}

// comparePoint compares a stored curve point against a replayed valuation.
func comparePoint(stored *domain.EquityCurvePoint, cash, holdings, total decimal.Decimal) []FieldDivergence {
	var divergences []FieldDivergence
	ref := stored.Date.Format(domain.DateLayout)
	fields := []struct {
		field            string
		stored, replayed decimal.Decimal
	}{
		{"Cash", stored.Cash, cash},
		{"HoldingsValue", stored.HoldingsValue, holdings},
		{"TotalEquity", stored.TotalEquity, total},
	}
	for _, f := range fields {
		if !f.stored.Equal(f.replayed) {
			divergences = append(divergences, FieldDivergence{
				Ref:      ref,
				Field:    f.field,
				Expected: f.stored.String(),
				Actual:   f.replayed.String(),
			})
		}
	}
	return divergences
}

// PriceSource values holdings at a date. *marketdata.Series satisfies it.
type PriceSource interface {
	CloseAtOrBefore(instrumentID string, day time.Time) (decimal.Decimal, error)
}
