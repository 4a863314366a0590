package strategy

import (
	"context"
	"fmt"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
)

// OrderListStrategy replays a fixed schedule of explicit orders.
type OrderListStrategy struct {
	Schedule map[string][]domain.Order // keyed by YYYY-MM-DD
}

// NewOrderListStrategy creates a new OrderListStrategy. The schedule is copied
// with its date keys normalised.
func NewOrderListStrategy(schedule map[string][]domain.Order) *OrderListStrategy {
	copied := make(map[string][]domain.Order, len(schedule))
	for date, orders := range schedule {
		key := date
		if d, err := domain.ParseDay(date); err == nil {
			key = d.Format(domain.DateLayout)
		}
		copied[key] = append(copied[key], orders...)
	}
	return &OrderListStrategy{Schedule: copied}
}

// ID returns the strategy identifier including parameters.
func (s *OrderListStrategy) ID() string {
	n := 0
	for _, orders := range s.Schedule {
		n += len(orders)
	}
	return fmt.Sprintf("%s_%d", domain.StrategyTypeOrderList, n)
}

// Signal returns the orders scheduled for day, if any.
func (s *OrderListStrategy) Signal(_ context.Context, day time.Time, _ *marketdata.Window, _ domain.PortfolioSnapshot) (*domain.Signal, error) {
	key := domain.Day(day).Format(domain.DateLayout)
	orders, ok := s.Schedule[key]
	if !ok || len(orders) == 0 {
		return nil, nil
	}
	return domain.Orders(append([]domain.Order(nil), orders...), "scheduled "+key), nil
}

// Ensure OrderListStrategy implements Strategy
var _ Strategy = (*OrderListStrategy)(nil)
