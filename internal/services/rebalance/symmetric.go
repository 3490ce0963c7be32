// Package rebalance plans portfolio rebalancing trades from balance snapshots.
package rebalance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

const (
	reasonInsufficient     = "Insufficient price or balance"
	reasonWithinThreshold  = "Within threshold"
	reasonInsufficientUSDT = "Insufficient USDT"
)

// Params symmetric planner parameters.
type Params struct {
	// TargetRatio share of total value that should be held in the base asset.
	TargetRatio decimal.Decimal
	// MinNotionalUSDT trades below this value are not worth placing.
	MinNotionalUSDT decimal.Decimal
	// ThresholdPct drift below this share of total value is ignored.
	ThresholdPct decimal.Decimal
}

// DefaultParams 50/50 split, 5 USDT minimum, 1% drift threshold.
func DefaultParams() Params {
	return Params{
		TargetRatio:     decimal.NewFromFloat(0.5),
		MinNotionalUSDT: decimal.NewFromInt(5),
		ThresholdPct:    decimal.NewFromFloat(0.01),
	}
}

type planRecorder interface {
	SaveRebalancePlan(ctx context.Context, plan domain.RebalancePlan) error
}

// Symmetric keeps a fixed value ratio between base and quote assets.
type Symmetric struct {
	pair     domain.Pair
	params   Params
	recorder planRecorder
	l        *zap.Logger
}

// NewSymmetric creates the planner. recorder may be nil.
func NewSymmetric(l *zap.Logger, pair domain.Pair, params Params, recorder planRecorder) *Symmetric {
	return &Symmetric{pair: pair, params: params, recorder: recorder, l: l}
}

// ComputePlan pure function of the snapshot and the parameters.
func (s *Symmetric) ComputePlan(snap domain.BalanceSnapshot) domain.RebalancePlan {
	base := snap.Asset(s.pair.From).Total
	quote := snap.Asset(s.pair.To).Total
	price, _ := snap.Price(s.pair.Symbol())

	baseValue := base.Mul(price)
	total := baseValue.Add(quote)
	target := total.Mul(s.params.TargetRatio)
	delta := baseValue.Sub(target)
	notional := delta.Abs()
	quantity := decimal.Zero
	if price.IsPositive() {
		quantity = notional.Div(price)
	}

	// HOLD plans keep the computed quantity and notional
	plan := domain.RebalancePlan{
		Timestamp:       snap.Metadata.Timestamp,
		Symbol:          s.pair.Symbol(),
		Strategy:        domain.StrategySymmetric,
		Price:           price,
		QRLBalance:      base,
		USDTBalance:     quote,
		QRLValueUSDT:    baseValue,
		USDTValueUSDT:   quote,
		TotalValueUSDT:  total,
		TargetValueUSDT: target,
		TargetRatio:     s.params.TargetRatio,
		Action:          domain.ActionHold,
		Quantity:        quantity,
		NotionalUSDT:    notional,
	}

	if !price.IsPositive() || !total.IsPositive() {
		plan.Reason = reasonInsufficient
		return plan
	}

	if notional.LessThan(s.params.MinNotionalUSDT) || notional.Div(total).LessThan(s.params.ThresholdPct) {
		plan.Reason = reasonWithinThreshold
		return plan
	}

	if delta.IsPositive() {
		sellQty := decimal.Min(quantity, base)
		plan.Action = domain.ActionSell
		plan.Quantity = sellQty
		plan.NotionalUSDT = sellQty.Mul(price)
		plan.Reason = fmt.Sprintf("%s above target", s.pair.From)
		return plan
	}

	// zero drift lands here too and holds for lack of a positive buy size
	buyQty := decimal.Min(quantity, quote.Div(price))
	if !buyQty.IsPositive() {
		plan.Reason = reasonInsufficientUSDT
		return plan
	}
	plan.Action = domain.ActionBuy
	plan.Quantity = buyQty
	plan.NotionalUSDT = buyQty.Mul(price)
	plan.Reason = fmt.Sprintf("%s below target", s.pair.From)
	return plan
}

// GeneratePlan computes the plan and records it. Recording failures are logged, not returned.
func (s *Symmetric) GeneratePlan(ctx context.Context, snap domain.BalanceSnapshot) domain.RebalancePlan {
	plan := s.ComputePlan(snap)
	record(ctx, s.l, s.recorder, plan)
	return plan
}

func record(ctx context.Context, l *zap.Logger, recorder planRecorder, plan domain.RebalancePlan) {
	if recorder == nil {
		return
	}
	if err := recorder.SaveRebalancePlan(ctx, plan); err != nil {
		l.Warn("failed to record rebalance plan",
			zap.String("strategy", plan.Strategy),
			zap.String("action", plan.Action.String()),
			zap.Error(err))
	}
}
