// Package backtest runs a signal source against historical daily bars one
// trading day at a time.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/observability"
	"ashare-quant-lab/internal/portfolio"
)

// SignalSource decides the portfolio for each trading day.
type SignalSource interface {
	// Signal is called once per trading day. The window only exposes bars
	// strictly before day. A nil signal means hold.
	Signal(ctx context.Context, day time.Time, window *marketdata.Window, portfolio domain.PortfolioSnapshot) (*domain.Signal, error)
}

// Result holds everything a finished run produced.
type Result struct {
	RunID         string
	Curve         []*domain.EquityCurvePoint
	Trades        []*domain.TradeRecord
	Rejections    []*domain.RejectedTrade
	FinalSnapshot domain.PortfolioSnapshot
	SkippedDays   []time.Time
}

// Engine owns the day loop. It holds no per-run state and can be reused.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new backtest engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// RunBacktest runs with a silent engine.
func RunBacktest(ctx context.Context, series *marketdata.Series, source SignalSource, cfg Config) (*Result, error) {
	return NewEngine(nil).Run(ctx, series, source, cfg)
}

// run is the mutable state of a single simulation.
type run struct {
	cfg      Config
	runID    string
	series   *marketdata.Series
	manager  *portfolio.Manager
	logger   *zap.Logger
	rejected []*domain.RejectedTrade
}

// Run simulates every trading day between cfg.StartDate and cfg.EndDate.
// It returns either a complete Result or a single error; cancellation of ctx
// is honoured between days only.
func (e *Engine) Run(ctx context.Context, series *marketdata.Series, source SignalSource, cfg Config) (*Result, error) {
	started := time.Now()
	strategyName := sourceName(source)

	res, err := e.run(ctx, series, source, cfg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordRun(strategyName, status, time.Since(started).Seconds())
	return res, err
}

func (e *Engine) run(ctx context.Context, series *marketdata.Series, source SignalSource, cfg Config) (*Result, error) {
	if series == nil || source == nil {
		return nil, fmt.Errorf("%w: series and signal source are required", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cost.NewModel(cfg.Costs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := e.logger.With(zap.String("run_id", runID))

	days, skipped, err := tradingDays(series, cfg)
	if err != nil {
		return nil, err
	}
	for _, d := range skipped {
		logger.Warn("skipping calendar day without bars", zap.String("date", d.Format(domain.DateLayout)))
	}

	manager, err := portfolio.NewManager(cfg.InitialCapital, model, portfolio.WithRunID(runID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	r := &run{
		cfg:     cfg,
		runID:   runID,
		series:  series,
		manager: manager,
		logger:  logger,
	}

	curve := make([]*domain.EquityCurvePoint, 0, len(days))
	prevEquity := cfg.InitialCapital

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run aborted before %s: %w", day.Format(domain.DateLayout), err)
		}

		signal, err := source.Signal(ctx, day, series.Window(day), manager.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("signal for %s: %w", day.Format(domain.DateLayout), err)
		}
		if signal != nil {
			orders, err := r.plan(day, signal)
			if err != nil {
				return nil, err
			}
			if err := r.execute(day, orders); err != nil {
				return nil, err
			}
		}

		point, err := r.valuate(day, prevEquity)
		if err != nil {
			return nil, err
		}
		curve = append(curve, point)
		prevEquity = point.TotalEquity
		observability.RecordDaySimulated()
	}

	res := &Result{
		RunID:         runID,
		Curve:         curve,
		Trades:        manager.Trades(),
		Rejections:    r.rejected,
		FinalSnapshot: manager.Snapshot(),
		SkippedDays:   skipped,
	}

	final := cfg.InitialCapital
	if len(curve) > 0 {
		final = curve[len(curve)-1].TotalEquity
	}
	logger.Info("backtest finished",
		zap.Int("days", len(curve)),
		zap.Int("trades", len(res.Trades)),
		zap.Int("rejections", len(res.Rejections)),
		zap.String("final_equity", final.StringFixed(2)),
	)
	return res, nil
}

// tradingDays builds the day sequence and applies the gap policy. Under
// GapFail the whole calendar is checked before any day executes.
func tradingDays(series *marketdata.Series, cfg Config) (days, skipped []time.Time, err error) {
	universe := cfg.universe()
	calendar := cfg.calendarDays()
	if len(calendar) == 0 {
		calendar = series.Dates(cfg.StartDate, cfg.EndDate)
	}

	for _, d := range calendar {
		if series.HasAnyBar(d, universe) {
			days = append(days, d)
			continue
		}
		if cfg.GapPolicy == GapFail {
			return nil, nil, fmt.Errorf("%w: no bars on %s", ErrMissingTradingDay, d.Format(domain.DateLayout))
		}
		skipped = append(skipped, d)
	}

	if len(days) == 0 {
		return nil, nil, fmt.Errorf("%w: no trading days between %s and %s", ErrMissingTradingDay,
			cfg.StartDate.Format(domain.DateLayout), cfg.EndDate.Format(domain.DateLayout))
	}
	return days, skipped, nil
}

// executionPrice returns the fill reference price of an instrument on day.
func (r *run) executionPrice(instrumentID string, day time.Time) (decimal.Decimal, bool) {
	bar, ok := r.series.BarAt(instrumentID, day)
	if !ok {
		return decimal.Zero, false
	}
	switch r.cfg.ExecutionMode {
	case ExecutionSameClose:
		return bar.Close, true
	case ExecutionNextOpen:
		return bar.Open, true
	default:
		return decimal.Zero, false
	}
}

// plan turns a signal into orders, sells first then buys, each group in
// ascending instrument order.
func (r *run) plan(day time.Time, signal *domain.Signal) ([]domain.Order, error) {
	var orders []domain.Order
	switch signal.Kind {
	case domain.SignalTargetWeights:
		var err error
		if orders, err = r.planWeights(day, signal.Weights); err != nil {
			return nil, err
		}
	case domain.SignalOrders:
		orders = r.planOrders(day, signal.Orders)
	default:
		r.reject(day, domain.Order{}, decimal.Zero, domain.RejectInvalidOrder,
			fmt.Sprintf("unknown signal kind %q", signal.Kind))
		return nil, nil
	}

	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Side != orders[j].Side {
			return orders[i].Side == domain.SideSell
		}
		return orders[i].InstrumentID < orders[j].InstrumentID
	})
	return orders, nil
}

// planWeights converts target weights into share deltas. The equity base is
// the pre-trade portfolio valued at execution prices; holdings absent from
// weights are closed.
func (r *run) planWeights(day time.Time, weights map[string]decimal.Decimal) ([]domain.Order, error) {
	snapshot := r.manager.Snapshot()

	targets := make(map[string]decimal.Decimal, len(weights)+len(snapshot.Positions))
	for id, w := range weights {
		targets[id] = w
	}
	for id := range snapshot.Positions {
		if _, ok := targets[id]; !ok {
			targets[id] = decimal.Zero
		}
	}

	equity := snapshot.Cash
	for id, pos := range snapshot.Positions {
		price, ok := r.executionPrice(id, day)
		if !ok {
			carried, err := r.series.CloseAtOrBefore(id, day)
			if err != nil {
				continue
			}
			price = carried
		}
		equity = equity.Add(price.Mul(decimal.NewFromInt(pos.Shares)))
	}

	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lot := decimal.NewFromInt(r.cfg.LotSize)
	var orders []domain.Order
	for _, id := range ids {
		w := targets[id]
		held := snapshot.Shares(id)

		if w.IsNegative() {
			r.reject(day, domain.Order{InstrumentID: id, Side: domain.SideBuy}, decimal.Zero,
				domain.RejectInvalidOrder, fmt.Sprintf("negative target weight %s", w))
			continue
		}

		if w.IsZero() {
			if held > 0 {
				orders = append(orders, domain.Order{InstrumentID: id, Side: domain.SideSell, Shares: held})
			}
			continue
		}

		price, ok := r.executionPrice(id, day)
		if !ok {
			err := r.missingPrice(day, domain.Order{InstrumentID: id, Side: domain.SideBuy},
				fmt.Sprintf("no bar on %s to size target weight %s", day.Format(domain.DateLayout), w))
			if err != nil {
				return nil, err
			}
			continue
		}

		target := equity.Mul(w).Div(price).Div(lot).Floor().Mul(lot).IntPart()
		switch {
		case target < held:
			orders = append(orders, domain.Order{InstrumentID: id, Side: domain.SideSell, Shares: held - target})
		case target > held:
			buy := decimal.NewFromInt(target - held).Div(lot).Floor().Mul(lot).IntPart()
			if buy > 0 {
				orders = append(orders, domain.Order{InstrumentID: id, Side: domain.SideBuy, Shares: buy})
			}
		}
	}
	return orders, nil
}

// planOrders passes explicit orders through, rounding buys down to the lot size.
func (r *run) planOrders(day time.Time, in []domain.Order) []domain.Order {
	orders := make([]domain.Order, 0, len(in))
	for _, o := range in {
		switch o.Side {
		case domain.SideBuy:
			shares := o.Shares / r.cfg.LotSize * r.cfg.LotSize
			if shares <= 0 {
				r.reject(day, o, decimal.Zero, domain.RejectInvalidOrder,
					fmt.Sprintf("buy of %d shares is below lot size %d", o.Shares, r.cfg.LotSize))
				continue
			}
			o.Shares = shares
		case domain.SideSell:
			if o.Shares <= 0 {
				r.reject(day, o, decimal.Zero, domain.RejectInvalidOrder,
					fmt.Sprintf("sell of %d shares", o.Shares))
				continue
			}
		default:
			r.reject(day, o, decimal.Zero, domain.RejectInvalidOrder, fmt.Sprintf("unknown side %q", o.Side))
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// execute fills orders through the portfolio manager. Rejections are
// recorded and the day continues; any other error is fatal.
func (r *run) execute(day time.Time, orders []domain.Order) error {
	for _, o := range orders {
		price, ok := r.executionPrice(o.InstrumentID, day)
		if !ok {
			if err := r.missingPrice(day, o, fmt.Sprintf("no bar on %s", day.Format(domain.DateLayout))); err != nil {
				return err
			}
			continue
		}

		var (
			rec *domain.TradeRecord
			err error
		)
		if o.Side == domain.SideBuy {
			rec, err = r.manager.Buy(o.InstrumentID, o.Shares, price, day)
		} else {
			rec, err = r.manager.Sell(o.InstrumentID, o.Shares, price, day)
		}

		switch {
		case err == nil:
			observability.RecordTrade(string(rec.Side))
			r.logger.Debug("trade executed",
				zap.String("date", day.Format(domain.DateLayout)),
				zap.String("instrument", rec.InstrumentID),
				zap.String("side", string(rec.Side)),
				zap.Int64("shares", rec.Shares),
				zap.String("fill_price", rec.FillPrice.String()),
			)
		case errors.Is(err, portfolio.ErrInsufficientCash):
			r.reject(day, o, price, domain.RejectInsufficientCash, err.Error())
		case errors.Is(err, portfolio.ErrInsufficientShares):
			r.reject(day, o, price, domain.RejectInsufficientShares, err.Error())
		case errors.Is(err, portfolio.ErrInvalidOrder):
			r.reject(day, o, price, domain.RejectInvalidOrder, err.Error())
		default:
			return fmt.Errorf("execute %s %s on %s: %w", o.Side, o.InstrumentID, day.Format(domain.DateLayout), err)
		}
	}
	return nil
}

// missingPrice handles an order whose instrument has no bar on day. Under
// GapSkip it is rejected and the day continues; GapFail aborts the run.
func (r *run) missingPrice(day time.Time, o domain.Order, detail string) error {
	if r.cfg.GapPolicy == GapFail {
		return fmt.Errorf("%w: %s %s: %s", ErrMissingPriceData, o.Side, o.InstrumentID, detail)
	}
	r.reject(day, o, decimal.Zero, domain.RejectMissingPriceData, fmt.Sprintf("%v: %s", ErrMissingPriceData, detail))
	return nil
}

// reject records a skipped trade attempt.
func (r *run) reject(day time.Time, o domain.Order, quoted decimal.Decimal, reason domain.RejectReason, detail string) {
	r.rejected = append(r.rejected, &domain.RejectedTrade{
		RunID:        r.runID,
		Date:         day,
		InstrumentID: o.InstrumentID,
		Side:         o.Side,
		Shares:       o.Shares,
		QuotedPrice:  quoted,
		Reason:       reason,
		Detail:       detail,
	})
	observability.RecordRejection(string(reason))
	r.logger.Warn("trade rejected",
		zap.String("date", day.Format(domain.DateLayout)),
		zap.String("instrument", o.InstrumentID),
		zap.String("side", string(o.Side)),
		zap.Int64("shares", o.Shares),
		zap.String("reason", string(reason)),
		zap.String("detail", detail),
	)
}

// valuate marks the portfolio at day's closes, carrying the last close
// forward for held instruments without a bar on day.
func (r *run) valuate(day time.Time, prevEquity decimal.Decimal) (*domain.EquityCurvePoint, error) {
	held := r.manager.Instruments()
	prices := make(map[string]decimal.Decimal, len(held))
	for _, id := range held {
		price, err := r.series.CloseAtOrBefore(id, day)
		if err != nil {
			return nil, fmt.Errorf("%w: value %s: %w", ErrMissingPriceData, id, err)
		}
		prices[id] = price
	}

	v, err := r.manager.MarkToMarket(prices, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingPriceData, err)
	}

	ret, _ := v.TotalEquity.Div(prevEquity).Sub(decimal.NewFromInt(1)).Float64()
	return &domain.EquityCurvePoint{
		Date:          day,
		Cash:          v.Cash,
		HoldingsValue: v.HoldingsValue,
		TotalEquity:   v.TotalEquity,
		DailyReturn:   ret,
	}, nil
}

// sourceName returns the strategy ID of sources that expose one.
func sourceName(source SignalSource) string {
	if named, ok := source.(interface{ ID() string }); ok {
		return named.ID()
	}
	return "custom"
}
