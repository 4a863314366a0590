package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
)

// Replay rebuilds a Manager by applying a trade log to a fresh portfolio.
// Records must be in execution order.
func Replay(initialCash decimal.Decimal, model *cost.Model, records []*domain.TradeRecord, opts ...Option) (*Manager, error) {
	m, err := NewManager(initialCash, model, opts...)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := m.Apply(rec); err != nil {
			return nil, fmt.Errorf("replay record %d: %w", i+1, err)
		}
	}
	return m, nil
}
