// Package portfolio owns cash and positions of a single backtest run.
// Manager is the only writer of portfolio state.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/idhash"
)

// Valuation is a mark-to-market result.
type Valuation struct {
	Date          time.Time
	Cash          decimal.Decimal
	HoldingsValue decimal.Decimal
	TotalEquity   decimal.Decimal
}

// Manager holds cash, positions and the trade log of one run.
// It is not safe for concurrent use; each run owns its own Manager.
type Manager struct {
	model     *cost.Model
	runID     string
	cash      decimal.Decimal
	positions map[string]*domain.Position
	trades    []*domain.TradeRecord

	// realized P&L of positions that have been fully closed
	closedPnL decimal.Decimal
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunID sets the run identifier stamped on trade records.
func WithRunID(runID string) Option {
	return func(m *Manager) {
		m.runID = runID
	}
}

// NewManager creates a Manager with initialCash and the given cost model.
func NewManager(initialCash decimal.Decimal, model *cost.Model, opts ...Option) (*Manager, error) {
	if !initialCash.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInitialCash, initialCash)
	}
	if model == nil {
		return nil, fmt.Errorf("cost model is required")
	}

	m := &Manager{
		model:     model,
		cash:      initialCash,
		positions: make(map[string]*domain.Position),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Buy purchases shares at quotedPrice (before slippage).
// Returns ErrInsufficientCash if cash < amount + costs.
func (m *Manager) Buy(instrumentID string, shares int64, quotedPrice decimal.Decimal, date time.Time) (*domain.TradeRecord, error) {
	venue, err := m.validateOrder(instrumentID, shares, quotedPrice)
	if err != nil {
		return nil, err
	}

	fill, err := m.model.FillPrice(quotedPrice, domain.SideBuy)
	if err != nil {
		return nil, err
	}
	qty := decimal.NewFromInt(shares)
	amount := fill.Mul(qty)

	c, err := m.model.ComputeBuyCost(amount, venue)
	if err != nil {
		return nil, err
	}

	total := amount.Add(c.Total)
	if m.cash.LessThan(total) {
		return nil, fmt.Errorf("%w: buy %d %s needs %s, cash %s",
			ErrInsufficientCash, shares, instrumentID, total.StringFixed(2), m.cash.StringFixed(2))
	}

	rec := m.newRecord(date, instrumentID, venue, domain.SideBuy, quotedPrice, fill, shares)
	rec.Commission = c.Commission
	rec.TransferFee = c.TransferFee
	rec.StampTax = decimal.Zero
	rec.RealizedPnL = decimal.Zero
	rec.NetCashDelta = total.Neg()

	if err := m.Apply(rec); err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Sell disposes of shares at quotedPrice (before slippage).
// Returns ErrInsufficientShares if shares exceed the holding.
func (m *Manager) Sell(instrumentID string, shares int64, quotedPrice decimal.Decimal, date time.Time) (*domain.TradeRecord, error) {
	venue, err := m.validateOrder(instrumentID, shares, quotedPrice)
	if err != nil {
		return nil, err
	}

	pos, held := m.positions[instrumentID]
	if !held || pos.Shares < shares {
		have := int64(0)
		if held {
			have = pos.Shares
		}
		return nil, fmt.Errorf("%w: sell %d %s, held %d", ErrInsufficientShares, shares, instrumentID, have)
	}

	fill, err := m.model.FillPrice(quotedPrice, domain.SideSell)
	if err != nil {
		return nil, err
	}
	qty := decimal.NewFromInt(shares)
	amount := fill.Mul(qty)

	c, err := m.model.ComputeSellCost(amount, venue)
	if err != nil {
		return nil, err
	}

	rec := m.newRecord(date, instrumentID, venue, domain.SideSell, quotedPrice, fill, shares)
	rec.Commission = c.Commission
	rec.TransferFee = c.TransferFee
	rec.StampTax = c.StampTax
	rec.RealizedPnL = fill.Sub(pos.AvgCost).Mul(qty)
	rec.NetCashDelta = amount.Sub(c.Total)

	if err := m.Apply(rec); err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Apply mutates portfolio state from a trade record and appends it to the log.
// Buy and Sell route through Apply, so replaying a log reproduces the same state.
func (m *Manager) Apply(rec *domain.TradeRecord) error {
	if rec == nil || rec.Shares <= 0 || rec.InstrumentID == "" {
		return fmt.Errorf("%w: malformed trade record", ErrInvalidOrder)
	}

	newCash := m.cash.Add(rec.NetCashDelta)
	if newCash.IsNegative() {
		return fmt.Errorf("%w: trade %s would leave cash at %s", ErrInsufficientCash, rec.TradeID, newCash)
	}

	qty := decimal.NewFromInt(rec.Shares)
	pos := m.positions[rec.InstrumentID]

	switch rec.Side {
	case domain.SideBuy:
		if pos == nil {
			pos = &domain.Position{InstrumentID: rec.InstrumentID}
			m.positions[rec.InstrumentID] = pos
		}
		held := decimal.NewFromInt(pos.Shares)
		totalShares := pos.Shares + rec.Shares
		pos.AvgCost = pos.AvgCost.Mul(held).Add(rec.FillPrice.Mul(qty)).Div(decimal.NewFromInt(totalShares))
		pos.Shares = totalShares

	case domain.SideSell:
		if pos == nil || pos.Shares < rec.Shares {
			return fmt.Errorf("%w: trade %s sells %d %s", ErrInsufficientShares, rec.TradeID, rec.Shares, rec.InstrumentID)
		}
		pos.Shares -= rec.Shares
		pos.RealizedPnL = pos.RealizedPnL.Add(rec.RealizedPnL)
		if pos.Shares == 0 {
			m.closedPnL = m.closedPnL.Add(pos.RealizedPnL)
			delete(m.positions, rec.InstrumentID)
		}

	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, rec.Side)
	}

	m.cash = newCash
	stored := *rec
	m.trades = append(m.trades, &stored)
	return nil
}

// MarkToMarket values the portfolio at the given prices. It does not mutate state.
// Every held instrument must have a price.
func (m *Manager) MarkToMarket(prices map[string]decimal.Decimal, date time.Time) (Valuation, error) {
	holdings := decimal.Zero
	for id, pos := range m.positions {
		price, ok := prices[id]
		if !ok {
			return Valuation{}, fmt.Errorf("%w: %s on %s", ErrMissingPrice, id, date.Format(domain.DateLayout))
		}
		holdings = holdings.Add(price.Mul(decimal.NewFromInt(pos.Shares)))
	}
	return Valuation{
		Date:          date,
		Cash:          m.cash,
		HoldingsValue: holdings,
		TotalEquity:   m.cash.Add(holdings),
	}, nil
}

// Cash returns the current cash balance.
func (m *Manager) Cash() decimal.Decimal {
	return m.cash
}

// Position returns a copy of the holding for instrumentID.
func (m *Manager) Position(instrumentID string) (domain.Position, bool) {
	pos, ok := m.positions[instrumentID]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Instruments returns held instrument IDs in ascending order.
func (m *Manager) Instruments() []string {
	ids := make([]string, 0, len(m.positions))
	for id := range m.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of cash and positions.
func (m *Manager) Snapshot() domain.PortfolioSnapshot {
	positions := make(map[string]domain.Position, len(m.positions))
	for id, pos := range m.positions {
		positions[id] = *pos
	}
	return domain.PortfolioSnapshot{Cash: m.cash, Positions: positions}
}

// Trades returns the trade log in execution order.
func (m *Manager) Trades() []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, len(m.trades))
	for i, t := range m.trades {
		c := *t
		out[i] = &c
	}
	return out
}

// RealizedPnL returns realized P&L across closed and open positions.
func (m *Manager) RealizedPnL() decimal.Decimal {
	total := m.closedPnL
	for _, pos := range m.positions {
		total = total.Add(pos.RealizedPnL)
	}
	return total
}

func (m *Manager) validateOrder(instrumentID string, shares int64, quotedPrice decimal.Decimal) (domain.Venue, error) {
	if shares <= 0 {
		return "", fmt.Errorf("%w: shares must be positive, got %d", ErrInvalidOrder, shares)
	}
	if !quotedPrice.IsPositive() {
		return "", fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, quotedPrice)
	}
	venue, err := domain.VenueOf(instrumentID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return venue, nil
}

func (m *Manager) newRecord(
	date time.Time,
	instrumentID string,
	venue domain.Venue,
	side domain.Side,
	quoted, fill decimal.Decimal,
	shares int64,
) *domain.TradeRecord {
	seq := len(m.trades) + 1
	return &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(m.runID, seq, date, instrumentID, side),
		RunID:        m.runID,
		Seq:          seq,
		Date:         date,
		InstrumentID: instrumentID,
		Venue:        venue,
		Side:         side,
		QuotedPrice:  quoted,
		FillPrice:    fill,
		Shares:       shares,
		SlippageCost: fill.Sub(quoted).Abs().Mul(decimal.NewFromInt(shares)),
	}
}
