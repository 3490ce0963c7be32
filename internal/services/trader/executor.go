// Package trader places the orders proposed by the trading workflow and books them.
package trader

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/position"
	"github.com/vadiminshakov/qrlbot/internal/services/workflow"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
)

// ErrNotProposed is returned for decisions that do not ask for an order.
var ErrNotProposed = errors.New("decision does not propose a trade")

type orderPlacer interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, quantity decimal.Decimal, clientOrderID string) (domain.OrderResult, error)
}

type tradeBook interface {
	IncrementDailyTrades(ctx context.Context, symbol string, now time.Time) (int, error)
	SetLastTradeTime(ctx context.Context, symbol string, t time.Time) error
	AddTradeRecord(ctx context.Context, rec domain.TradeRecord) error
	SavePosition(ctx context.Context, symbol string, pos domain.Position) error
}

type journalWriter interface {
	Append(kind journal.Kind, symbol string, v any) error
}

// Executor sends market orders in live mode and only records them otherwise.
type Executor struct {
	l       *zap.Logger
	pair    domain.Pair
	orders  orderPlacer
	book    tradeBook
	journal journalWriter
	sizing  *position.Manager
	live    bool
	now     func() time.Time
}

func NewExecutor(l *zap.Logger, pair domain.Pair, orders orderPlacer, book tradeBook, jw journalWriter, sizing *position.Manager, live bool) *Executor {
	return &Executor{
		l:       l,
		pair:    pair,
		orders:  orders,
		book:    book,
		journal: jw,
		sizing:  sizing,
		live:    live,
		now:     time.Now,
	}
}

// Live reports whether orders reach the exchange.
func (e *Executor) Live() bool {
	return e.live
}

// Execute acts on a proposed decision. In dry-run mode the trade is recorded
// with status dry_run and neither counters nor the position change.
func (e *Executor) Execute(ctx context.Context, d workflow.Decision) (domain.TradeRecord, error) {
	if !d.Proposed() {
		return domain.TradeRecord{}, ErrNotProposed
	}

	symbol := e.pair.Symbol()
	rec := domain.TradeRecord{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Action:       d.Action,
		Quantity:     d.Quantity,
		Price:        d.Price,
		NotionalUSDT: d.Quantity.Mul(d.Price),
		Timestamp:    e.now().UTC(),
	}

	if !e.live {
		rec.Status = domain.TradeStatusDryRun
		e.record(ctx, rec)
		e.l.Info("dry run trade",
			zap.String("symbol", symbol),
			zap.String("action", d.Action.String()),
			zap.String("quantity", d.Quantity.String()))
		return rec, nil
	}

	res, err := e.orders.PlaceMarketOrder(ctx, symbol, d.Action, d.Quantity, rec.ID)
	if err != nil {
		rec.Status = domain.TradeStatusFailed
		rec.Error = err.Error()
		e.record(ctx, rec)
		return rec, errors.Wrap(err, "place market order")
	}

	rec.Status = domain.TradeStatusFilled
	rec.OrderID = res.OrderID
	if res.ExecutedQty.IsPositive() {
		rec.Quantity = res.ExecutedQty
		rec.NotionalUSDT = res.ExecutedQty.Mul(d.Price)
	}
	// book at the exchange fill when reported, otherwise at the decision price
	if fill, ok := res.FillPrice(); ok {
		rec.Price = fill
		rec.NotionalUSDT = res.QuoteQty
	}
	e.record(ctx, rec)

	if err := e.bookFill(ctx, d.Position, rec); err != nil {
		return rec, err
	}

	e.l.Info("trade executed",
		zap.String("symbol", symbol),
		zap.String("action", rec.Action.String()),
		zap.String("quantity", rec.Quantity.String()),
		zap.String("order_id", rec.OrderID))
	return rec, nil
}

func (e *Executor) bookFill(ctx context.Context, pos domain.Position, rec domain.TradeRecord) error {
	if _, err := e.book.IncrementDailyTrades(ctx, rec.Symbol, rec.Timestamp); err != nil {
		return errors.Wrap(err, "increment daily trades")
	}
	if err := e.book.SetLastTradeTime(ctx, rec.Symbol, rec.Timestamp); err != nil {
		return errors.Wrap(err, "set last trade time")
	}

	switch rec.Action {
	case domain.ActionBuy:
		pos = e.sizing.ApplyBuy(pos, rec.Price, rec.Quantity, rec.NotionalUSDT, rec.Timestamp)
	case domain.ActionSell:
		pos = e.sizing.ApplySell(pos, rec.Price, rec.Quantity, rec.Timestamp)
	}
	if err := e.book.SavePosition(ctx, rec.Symbol, pos); err != nil {
		return errors.Wrap(err, "save position")
	}
	return nil
}

// record stores the trade in history and the journal. Failures are logged only.
func (e *Executor) record(ctx context.Context, rec domain.TradeRecord) {
	if err := e.book.AddTradeRecord(ctx, rec); err != nil {
		e.l.Warn("failed to store trade record", zap.String("id", rec.ID), zap.Error(err))
	}
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(journal.KindTrade, rec.Symbol, rec); err != nil {
		e.l.Warn("failed to journal trade", zap.String("id", rec.ID), zap.Error(err))
	}
}
