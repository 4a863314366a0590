package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType   = errors.New("unknown strategy type")
	ErrEmptyUniverse         = errors.New("BUY_AND_HOLD/MA_CROSS requires a non-empty Universe")
	ErrMissingFastWindow     = errors.New("MA_CROSS requires FastWindow")
	ErrMissingSlowWindow     = errors.New("MA_CROSS requires SlowWindow")
	ErrInvalidWindows        = errors.New("MA_CROSS requires 0 < FastWindow < SlowWindow")
	ErrInvalidInvestFraction = errors.New("InvestFraction must be in (0, 1]")
	ErrEmptySchedule         = errors.New("ORDER_LIST requires a non-empty Schedule")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeBuyAndHold:
		return fromBuyAndHoldConfig(cfg)
	case domain.StrategyTypeMACross:
		return fromMACrossConfig(cfg)
	case domain.StrategyTypeOrderList:
		return fromOrderListConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

func fromBuyAndHoldConfig(cfg domain.StrategyConfig) (*BuyAndHoldStrategy, error) {
	if len(cfg.Universe) == 0 {
		return nil, ErrEmptyUniverse
	}
	fraction, err := investFraction(cfg)
	if err != nil {
		return nil, err
	}
	return NewBuyAndHoldStrategy(cfg.Universe, fraction), nil
}

func fromMACrossConfig(cfg domain.StrategyConfig) (*MACrossStrategy, error) {
	if len(cfg.Universe) == 0 {
		return nil, ErrEmptyUniverse
	}
	if cfg.FastWindow == nil {
		return nil, ErrMissingFastWindow
	}
	if cfg.SlowWindow == nil {
		return nil, ErrMissingSlowWindow
	}
	if *cfg.FastWindow < 1 || *cfg.FastWindow >= *cfg.SlowWindow {
		return nil, ErrInvalidWindows
	}
	fraction, err := investFraction(cfg)
	if err != nil {
		return nil, err
	}
	return NewMACrossStrategy(cfg.Universe, *cfg.FastWindow, *cfg.SlowWindow, fraction), nil
}

func fromOrderListConfig(cfg domain.StrategyConfig) (*OrderListStrategy, error) {
	if len(cfg.Schedule) == 0 {
		return nil, ErrEmptySchedule
	}
	for date := range cfg.Schedule {
		if _, err := domain.ParseDay(date); err != nil {
			return nil, fmt.Errorf("ORDER_LIST schedule: %w", err)
		}
	}
	return NewOrderListStrategy(cfg.Schedule), nil
}

func investFraction(cfg domain.StrategyConfig) (decimal.Decimal, error) {
	if cfg.InvestFraction == nil {
		return DefaultInvestFraction, nil
	}
	f := *cfg.InvestFraction
	if !f.IsPositive() || f.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidInvestFraction
	}
	return f, nil
}
