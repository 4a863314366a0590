package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
)

// BuyAndHoldStrategy invests an equal share of equity in every universe
// instrument while the portfolio is flat, then holds.
type BuyAndHoldStrategy struct {
	Universe       []string
	InvestFraction decimal.Decimal
}

// NewBuyAndHoldStrategy creates a new BuyAndHoldStrategy.
func NewBuyAndHoldStrategy(universe []string, investFraction decimal.Decimal) *BuyAndHoldStrategy {
	return &BuyAndHoldStrategy{
		Universe:       sortedUniverse(universe),
		InvestFraction: investFraction,
	}
}

// ID returns the strategy identifier including parameters.
func (s *BuyAndHoldStrategy) ID() string {
	return domain.StrategyTypeBuyAndHold + "_" + s.InvestFraction.String()
}

// Signal emits the entry weights while nothing is held.
func (s *BuyAndHoldStrategy) Signal(_ context.Context, _ time.Time, _ *marketdata.Window, portfolio domain.PortfolioSnapshot) (*domain.Signal, error) {
	if len(portfolio.Positions) > 0 {
		return nil, nil
	}
	return domain.TargetWeights(equalWeights(s.Universe, s.InvestFraction), "initial allocation"), nil
}

// Ensure BuyAndHoldStrategy implements Strategy
var _ Strategy = (*BuyAndHoldStrategy)(nil)
