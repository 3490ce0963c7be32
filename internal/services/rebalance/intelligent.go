package rebalance

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/strategy"
)

const (
	reasonMAInsufficient = "MA gate: insufficient price history"
	reasonMANoGolden     = "MA gate: no golden cross for BUY"
	reasonMANoDeath      = "MA gate: no death cross for SELL"
	reasonCostAbove      = "Cost gate: price above average cost"
	reasonCostBelow      = "Cost gate: price below sell target"
	reasonCostUnknown    = "Cost gate: no cost basis for SELL"
	reasonCoreOnly       = "Position tier: only core position remains"
	reasonTierNotional   = "Position tier: tradeable amount below minimum notional"
)

// IntelligentParams MA, cost-basis and tier parameters.
type IntelligentParams struct {
	ShortPeriod int
	LongPeriod  int
	// SellMargin minimum gain over average cost before selling.
	SellMargin decimal.Decimal
	CorePct    decimal.Decimal
	SwingPct   decimal.Decimal
}

// DefaultIntelligentParams MA 7/25, 3% sell margin, 70/20/10 tiers.
func DefaultIntelligentParams() IntelligentParams {
	return IntelligentParams{
		ShortPeriod: 7,
		LongPeriod:  25,
		SellMargin:  decimal.NewFromFloat(0.03),
		CorePct:     decimal.NewFromFloat(0.7),
		SwingPct:    decimal.NewFromFloat(0.2),
	}
}

type priceHistoryReader interface {
	PriceHistory(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error)
}

type positionReader interface {
	Position(ctx context.Context, symbol string) (*domain.Position, error)
}

// Intelligent symmetric planner gated by MA crossover and cost basis, with tiered sells.
type Intelligent struct {
	base      *Symmetric
	params    IntelligentParams
	history   priceHistoryReader
	positions positionReader
	recorder  planRecorder
	l         *zap.Logger
}

// NewIntelligent creates the planner on top of a symmetric one.
func NewIntelligent(
	l *zap.Logger,
	base *Symmetric,
	params IntelligentParams,
	history priceHistoryReader,
	positions positionReader,
	recorder planRecorder,
) *Intelligent {
	return &Intelligent{
		base:      base,
		params:    params,
		history:   history,
		positions: positions,
		recorder:  recorder,
		l:         l,
	}
}

// ComputePlan applies the gates to the symmetric plan. history is most-recent-first,
// pos may be nil when no position has been recorded.
func (p *Intelligent) ComputePlan(snap domain.BalanceSnapshot, history []decimal.Decimal, pos *domain.Position) domain.RebalancePlan {
	plan := p.base.ComputePlan(snap)
	plan.Strategy = domain.StrategyIntelligent

	tiers := domain.NewPositionTiers(plan.QRLBalance, p.params.CorePct, p.params.SwingPct)
	plan.Tiers = &tiers

	ma := strategy.Cross(history, p.params.ShortPeriod, p.params.LongPeriod)
	plan.MA = &ma

	cost := domain.CostBasisCheck{AverageCost: decimal.Zero, SellTarget: decimal.Zero, Skipped: true}
	if pos != nil && pos.HasCostBasis() {
		cost.Skipped = false
		cost.AverageCost = pos.AverageCost
		cost.SellTarget = pos.AverageCost.Mul(decimal.NewFromInt(1).Add(p.params.SellMargin))
	}
	plan.CostBasis = &cost

	if !plan.Action.IsTrade() {
		return plan
	}

	var blocked []string

	switch plan.Action {
	case domain.ActionBuy:
		ma.Passed = ma.Cross == domain.CrossGolden
		if !ma.Passed {
			blocked = append(blocked, maReason(ma, reasonMANoGolden))
		}
		cost.Passed = cost.Skipped || plan.Price.LessThanOrEqual(cost.AverageCost)
		if !cost.Passed {
			blocked = append(blocked, reasonCostAbove)
		}
	case domain.ActionSell:
		ma.Passed = ma.Cross == domain.CrossDeath
		if !ma.Passed {
			blocked = append(blocked, maReason(ma, reasonMANoDeath))
		}
		switch {
		case cost.Skipped:
			blocked = append(blocked, reasonCostUnknown)
		case plan.Price.LessThan(cost.SellTarget):
			blocked = append(blocked, reasonCostBelow)
		default:
			cost.Passed = true
		}
	}
	plan.MA = &ma
	plan.CostBasis = &cost

	if len(blocked) > 0 {
		return plan.Hold(strings.Join(blocked, "; "))
	}

	if plan.Action == domain.ActionSell {
		tradeable := tiers.Tradeable()
		if !tradeable.IsPositive() {
			return plan.Hold(reasonCoreOnly)
		}
		if plan.Quantity.GreaterThan(tradeable) {
			plan.Quantity = tradeable
			plan.NotionalUSDT = tradeable.Mul(plan.Price)
			if plan.NotionalUSDT.LessThan(p.base.params.MinNotionalUSDT) {
				return plan.Hold(reasonTierNotional)
			}
		}
	}

	return plan
}

func maReason(ma domain.MASignal, noCross string) string {
	if ma.Cross == domain.CrossInsufficient {
		return reasonMAInsufficient
	}
	return noCross
}

// GeneratePlan loads history and position, computes the plan and records it.
// Read failures degrade to missing inputs, which keep the gates closed.
func (p *Intelligent) GeneratePlan(ctx context.Context, snap domain.BalanceSnapshot) domain.RebalancePlan {
	symbol := p.base.pair.Symbol()

	var history []decimal.Decimal
	if p.history != nil {
		h, err := p.history.PriceHistory(ctx, symbol, p.params.LongPeriod)
		if err != nil {
			p.l.Warn("failed to load price history", zap.String("symbol", symbol), zap.Error(err))
		} else {
			history = h
		}
	}

	var pos *domain.Position
	if p.positions != nil {
		stored, err := p.positions.Position(ctx, symbol)
		if err != nil {
			p.l.Warn("failed to load position", zap.String("symbol", symbol), zap.Error(err))
		} else {
			pos = stored
		}
	}

	plan := p.ComputePlan(snap, history, pos)
	record(ctx, p.l, p.recorder, plan)
	return plan
}
