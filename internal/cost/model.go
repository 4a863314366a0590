// Package cost computes A-share transaction costs: commission, stamp tax,
// exchange transfer fee and slippage.
package cost

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// ErrInvalidConfiguration is returned when a cost configuration is rejected.
var ErrInvalidConfiguration = errors.New("invalid cost configuration")

// Config holds every rate the model applies. There are no built-in defaults:
// a zero field means the cost line is not charged.
type Config struct {
	CommissionRate decimal.Decimal // fraction of traded amount, both sides
	MinCommission  decimal.Decimal // floor per trade, both sides
	StampTaxRate   decimal.Decimal // fraction of traded amount, sells only
	SlippageRate   decimal.Decimal // price adjustment applied before costs

	// TransferFeeRates holds the transfer fee per venue. Venues absent from
	// the map do not levy the fee.
	TransferFeeRates map[domain.Venue]decimal.Decimal
}

// Validate checks that all rates are non-negative and venues are known.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"commission_rate", c.CommissionRate},
		{"min_commission", c.MinCommission},
		{"stamp_tax_rate", c.StampTaxRate},
		{"slippage_rate", c.SlippageRate},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s must be >= 0, got %s", ErrInvalidConfiguration, f.name, f.value)
		}
	}
	if c.SlippageRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: slippage_rate must be < 1, got %s", ErrInvalidConfiguration, c.SlippageRate)
	}
	for venue, rate := range c.TransferFeeRates {
		if _, err := domain.ParseVenue(string(venue)); err != nil {
			return fmt.Errorf("%w: transfer fee: %v", ErrInvalidConfiguration, err)
		}
		if rate.IsNegative() {
			return fmt.Errorf("%w: transfer fee rate for %s must be >= 0, got %s", ErrInvalidConfiguration, venue, rate)
		}
	}
	return nil
}

// BuyCost is the fee breakdown of a buy.
type BuyCost struct {
	Commission  decimal.Decimal
	TransferFee decimal.Decimal
	Total       decimal.Decimal
}

// SellCost is the fee breakdown of a sell.
type SellCost struct {
	Commission  decimal.Decimal
	TransferFee decimal.Decimal
	StampTax    decimal.Decimal
	Total       decimal.Decimal
}

// Model applies a Config. It holds no mutable state and is safe for concurrent use.
type Model struct {
	commissionRate decimal.Decimal
	minCommission  decimal.Decimal
	stampTaxRate   decimal.Decimal
	slippageRate   decimal.Decimal

	sseTransfer  decimal.Decimal
	szseTransfer decimal.Decimal
	bseTransfer  decimal.Decimal
}

// NewModel validates cfg and builds a Model from a private copy of it.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		commissionRate: cfg.CommissionRate,
		minCommission:  cfg.MinCommission,
		stampTaxRate:   cfg.StampTaxRate,
		slippageRate:   cfg.SlippageRate,
		sseTransfer:    cfg.TransferFeeRates[domain.VenueSSE],
		szseTransfer:   cfg.TransferFeeRates[domain.VenueSZSE],
		bseTransfer:    cfg.TransferFeeRates[domain.VenueBSE],
	}, nil
}

// FillPrice applies slippage to a quoted price: up for buys, down for sells.
func (m *Model) FillPrice(quoted decimal.Decimal, side domain.Side) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	switch side {
	case domain.SideBuy:
		return quoted.Mul(one.Add(m.slippageRate)), nil
	case domain.SideSell:
		return quoted.Mul(one.Sub(m.slippageRate)), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown side %q", side)
	}
}

// ComputeBuyCost returns the fees for buying amount (fill price * shares) on venue.
func (m *Model) ComputeBuyCost(amount decimal.Decimal, venue domain.Venue) (BuyCost, error) {
	transfer, err := m.transferFee(amount, venue)
	if err != nil {
		return BuyCost{}, err
	}
	commission := m.commission(amount)
	return BuyCost{
		Commission:  commission,
		TransferFee: transfer,
		Total:       commission.Add(transfer),
	}, nil
}

// ComputeSellCost returns the fees for selling amount (fill price * shares) on venue.
func (m *Model) ComputeSellCost(amount decimal.Decimal, venue domain.Venue) (SellCost, error) {
	transfer, err := m.transferFee(amount, venue)
	if err != nil {
		return SellCost{}, err
	}
	commission := m.commission(amount)
	stamp := amount.Mul(m.stampTaxRate)
	return SellCost{
		Commission:  commission,
		TransferFee: transfer,
		StampTax:    stamp,
		Total:       commission.Add(transfer).Add(stamp),
	}, nil
}

// commission = max(amount * rate, min).
func (m *Model) commission(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(amount.Mul(m.commissionRate), m.minCommission)
}

func (m *Model) transferFee(amount decimal.Decimal, venue domain.Venue) (decimal.Decimal, error) {
	switch venue {
	case domain.VenueSSE:
		return amount.Mul(m.sseTransfer), nil
	case domain.VenueSZSE:
		return amount.Mul(m.szseTransfer), nil
	case domain.VenueBSE:
		return amount.Mul(m.bseTransfer), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrUnknownVenue, venue)
	}
}
