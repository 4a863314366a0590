package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
)

// MACrossStrategy holds an instrument while its fast simple moving average
// of closes is above the slow one. Invested instruments share the invest
// fraction equally.
type MACrossStrategy struct {
	Universe       []string
	FastWindow     int
	SlowWindow     int
	InvestFraction decimal.Decimal
}

// NewMACrossStrategy creates a new MACrossStrategy.
func NewMACrossStrategy(universe []string, fast, slow int, investFraction decimal.Decimal) *MACrossStrategy {
	return &MACrossStrategy{
		Universe:       sortedUniverse(universe),
		FastWindow:     fast,
		SlowWindow:     slow,
		InvestFraction: investFraction,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MACrossStrategy) ID() string {
	return fmt.Sprintf("%s_%d_%d", domain.StrategyTypeMACross, s.FastWindow, s.SlowWindow)
}

// Lookback is the number of prior bars needed before the first crossover can be read.
func (s *MACrossStrategy) Lookback() int {
	return s.SlowWindow
}

// Signal rebalances only when the set of instruments above their slow
// average differs from what is held.
func (s *MACrossStrategy) Signal(_ context.Context, _ time.Time, window *marketdata.Window, portfolio domain.PortfolioSnapshot) (*domain.Signal, error) {
	var invested []string
	for _, id := range s.Universe {
		closes := window.Closes(id, s.SlowWindow)
		if len(closes) < s.SlowWindow {
			continue
		}
		fast := sma(closes[len(closes)-s.FastWindow:])
		slow := sma(closes)
		if fast.GreaterThan(slow) {
			invested = append(invested, id)
		}
	}

	if sameHoldings(portfolio, invested) {
		return nil, nil
	}

	weights := equalWeights(invested, s.InvestFraction)
	for _, id := range s.Universe {
		if _, ok := weights[id]; !ok {
			weights[id] = decimal.Zero
		}
	}
	return domain.TargetWeights(weights, fmt.Sprintf("%d above slow average", len(invested))), nil
}

// Ensure MACrossStrategy implements Strategy
var _ Strategy = (*MACrossStrategy)(nil)
