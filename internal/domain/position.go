package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Position is the current holding of one instrument.
// Shares == 0 implies AvgCost == 0; shares never go negative.
type Position struct {
	InstrumentID string
	Shares       int64
	AvgCost      decimal.Decimal // weighted average fill price, costs excluded
	RealizedPnL  decimal.Decimal // cumulative since the position was opened
}

// PortfolioSnapshot is a read-only copy of portfolio state handed to signal sources.
type PortfolioSnapshot struct {
	Cash      decimal.Decimal
	Positions map[string]Position
}

// Shares returns the held share count of an instrument (0 if flat).
func (s PortfolioSnapshot) Shares(instrumentID string) int64 {
	return s.Positions[instrumentID].Shares
}

// Instruments returns held instrument IDs in ascending order.
func (s PortfolioSnapshot) Instruments() []string {
	ids := make([]string, 0, len(s.Positions))
	for id := range s.Positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
