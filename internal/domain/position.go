package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position tracked holdings of the base asset with cost basis and PnL.
type Position struct {
	TotalQty      decimal.Decimal `json:"total_qty"`
	CoreQty       decimal.Decimal `json:"core_qty"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// NewPosition constructs a position and validates the core floor.
func NewPosition(totalQty, coreQty, averageCost decimal.Decimal, updated time.Time) (Position, error) {
	if totalQty.IsNegative() {
		return Position{}, errors.New("position quantity must not be negative")
	}
	if coreQty.IsNegative() {
		return Position{}, errors.New("core quantity must not be negative")
	}
	if coreQty.GreaterThan(totalQty) {
		return Position{}, errors.Errorf("core quantity %s exceeds total %s", coreQty, totalQty)
	}
	if averageCost.IsNegative() {
		return Position{}, errors.New("average cost must not be negative")
	}

	return Position{
		TotalQty:      totalQty,
		CoreQty:       coreQty,
		AverageCost:   averageCost,
		TotalInvested: averageCost.Mul(totalQty),
		LastUpdated:   updated,
	}, nil
}

// EmptyPosition returns a zero position stamped with the given time.
func EmptyPosition(now time.Time) Position {
	return Position{LastUpdated: now}
}

// TradeableQty quantity above the core floor, never negative.
func (p Position) TradeableQty() decimal.Decimal {
	q := p.TotalQty.Sub(p.CoreQty)
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// HasCostBasis reports whether an average cost has been recorded.
func (p Position) HasCostBasis() bool {
	return p.AverageCost.IsPositive() && p.TotalQty.IsPositive()
}

// PositionTiers core/swing/active split of holdings.
type PositionTiers struct {
	Total  decimal.Decimal `json:"total"`
	Core   decimal.Decimal `json:"core"`
	Swing  decimal.Decimal `json:"swing"`
	Active decimal.Decimal `json:"active"`
}

// NewPositionTiers splits total by the core and swing fractions; active takes the rest.
func NewPositionTiers(total, corePct, swingPct decimal.Decimal) PositionTiers {
	if !total.IsPositive() {
		return PositionTiers{Total: decimal.Zero, Core: decimal.Zero, Swing: decimal.Zero, Active: decimal.Zero}
	}
	core := total.Mul(corePct)
	if core.GreaterThan(total) {
		core = total
	}
	swing := total.Mul(swingPct)
	if core.Add(swing).GreaterThan(total) {
		swing = total.Sub(core)
	}
	return PositionTiers{
		Total:  total,
		Core:   core,
		Swing:  swing,
		Active: total.Sub(core).Sub(swing),
	}
}

// Tradeable quantity that may be sold without touching the core tier.
func (t PositionTiers) Tradeable() decimal.Decimal {
	return t.Swing.Add(t.Active)
}
