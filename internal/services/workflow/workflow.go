// Package workflow turns price, position and balance state into one advisory
// trading decision per cycle.
package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/position"
	"github.com/vadiminshakov/qrlbot/internal/services/pricer"
	"github.com/vadiminshakov/qrlbot/internal/services/risk"
	"github.com/vadiminshakov/qrlbot/internal/services/strategy"
)

// Stage terminal state of a workflow pass.
type Stage string

const (
	StageNoSignal     Stage = "no_signal"
	StageRejected     Stage = "rejected"
	StageInsufficient Stage = "insufficient"
	StageProposed     Stage = "proposed"
)

const (
	reasonNoSignal     = "No trading signal"
	reasonInsufficient = "Insufficient quantity"
)

type priceResolver interface {
	Resolve(ctx context.Context, symbol string) (pricer.Quote, error)
}

type historyReader interface {
	PriceHistory(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error)
}

type positionReader interface {
	Position(ctx context.Context, symbol string) (*domain.Position, error)
}

type tradeStats interface {
	DailyTrades(ctx context.Context, symbol string, now time.Time) (int, error)
	LastTradeTime(ctx context.Context, symbol string) (*time.Time, error)
}

type balanceResolver interface {
	FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	TotalBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Decision advisory output of one pass. Order placement is left to the caller.
type Decision struct {
	Success     bool                    `json:"success"`
	Stage       Stage                   `json:"stage"`
	Action      domain.Action           `json:"action"`
	Quantity    decimal.Decimal         `json:"quantity"`
	Price       decimal.Decimal         `json:"price"`
	PriceSource domain.PriceSource      `json:"price_source"`
	Reason      string                  `json:"reason"`
	Signal      strategy.SignalResult   `json:"signal"`
	Risk        *domain.RiskCheckResult `json:"risk,omitempty"`
	Position    domain.Position         `json:"position"`
	Timestamp   time.Time               `json:"timestamp"`
}

// Proposed reports whether the decision asks for an order.
func (d Decision) Proposed() bool {
	return d.Stage == StageProposed
}

// Workflow RESOLVE -> SIGNAL -> RISK_CHECK -> SIZE.
type Workflow struct {
	l         *zap.Logger
	pair      domain.Pair
	prices    priceResolver
	history   historyReader
	positions positionReader
	stats     tradeStats
	balances  balanceResolver
	strategy  *strategy.MACrossover
	risk      *risk.Manager
	sizing    *position.Manager
	now       func() time.Time
}

// Deps collaborators of the workflow.
type Deps struct {
	Prices    priceResolver
	History   historyReader
	Positions positionReader
	Stats     tradeStats
	Balances  balanceResolver
	Strategy  *strategy.MACrossover
	Risk      *risk.Manager
	Sizing    *position.Manager
	Now       func() time.Time
}

func New(l *zap.Logger, pair domain.Pair, deps Deps) *Workflow {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Workflow{
		l:         l,
		pair:      pair,
		prices:    deps.Prices,
		history:   deps.History,
		positions: deps.Positions,
		stats:     deps.Stats,
		balances:  deps.Balances,
		strategy:  deps.Strategy,
		risk:      deps.Risk,
		sizing:    deps.Sizing,
		now:       now,
	}
}

// Execute runs one pass. Business outcomes (no signal, risk rejection,
// insufficient size) are reported in the Decision; errors are I/O failures only.
func (w *Workflow) Execute(ctx context.Context) (Decision, error) {
	symbol := w.pair.Symbol()
	now := w.now().UTC()

	quote, err := w.prices.Resolve(ctx, symbol)
	if err != nil {
		return Decision{}, errors.Wrap(err, "resolve price")
	}
	history, err := w.history.PriceHistory(ctx, symbol, w.strategy.LongPeriod())
	if err != nil {
		return Decision{}, errors.Wrap(err, "load price history")
	}
	stored, err := w.positions.Position(ctx, symbol)
	if err != nil {
		return Decision{}, errors.Wrap(err, "load position")
	}
	pos := domain.EmptyPosition(now)
	if stored != nil {
		pos = *stored
	}

	d := Decision{
		Price:       quote.Price,
		PriceSource: quote.Source,
		Position:    pos,
		Timestamp:   now,
	}

	d.Signal = w.strategy.GenerateSignal(quote.Price, history, pos.AverageCost)
	d.Action = d.Signal.Signal
	if d.Action == domain.ActionHold {
		d.Success = true
		d.Stage = StageNoSignal
		d.Quantity = decimal.Zero
		d.Reason = reasonNoSignal
		return d, nil
	}

	daily, err := w.stats.DailyTrades(ctx, symbol, now)
	if err != nil {
		return Decision{}, errors.Wrap(err, "load daily trades")
	}
	lastTrade, err := w.stats.LastTradeTime(ctx, symbol)
	if err != nil {
		return Decision{}, errors.Wrap(err, "load last trade time")
	}
	usdt, err := w.balances.FreeBalance(ctx, w.pair.To)
	if err != nil {
		return Decision{}, errors.Wrap(err, "load quote balance")
	}
	if stored == nil {
		// no recorded layers yet: derive them from holdings valued at the current price
		total, err := w.balances.TotalBalance(ctx, w.pair.From)
		if err != nil {
			return Decision{}, errors.Wrap(err, "load base balance")
		}
		pos = w.sizing.DefaultPosition(total, quote.Price, now)
		d.Position = pos
	}

	check := w.risk.CheckAll(risk.Input{
		Signal:        d.Action,
		DailyTrades:   daily,
		LastTradeTime: lastTrade,
		Position:      &pos,
		USDTBalance:   usdt,
	})
	d.Risk = &check
	if !check.Allowed {
		d.Stage = StageRejected
		d.Reason = "Risk: " + check.Reason
		w.l.Info("trade rejected by risk checks",
			zap.String("symbol", symbol),
			zap.String("action", d.Action.String()),
			zap.String("reason", check.Reason))
		return d, nil
	}

	switch d.Action {
	case domain.ActionBuy:
		d.Quantity = w.sizing.CalculateBuyQuantity(usdt, quote.Price).Quantity
	case domain.ActionSell:
		d.Quantity = w.sizing.CalculateSellQuantity(pos.TotalQty, pos.CoreQty).Quantity
	}
	if !d.Quantity.IsPositive() {
		d.Stage = StageInsufficient
		d.Quantity = decimal.Zero
		d.Reason = reasonInsufficient
		return d, nil
	}

	d.Success = true
	d.Stage = StageProposed
	d.Reason = d.Signal.Reason
	w.l.Info("trade proposed",
		zap.String("symbol", symbol),
		zap.String("action", d.Action.String()),
		zap.String("quantity", d.Quantity.String()),
		zap.String("price", quote.Price.String()))
	return d, nil
}
