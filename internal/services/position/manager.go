// Package position sizes trades and maintains weighted-average cost basis.
package position

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// Manager pure sizing and cost-basis calculator.
type Manager struct {
	maxPositionFraction decimal.Decimal
	corePositionPct     decimal.Decimal
}

// NewManager creates a manager. maxPositionFraction is the share of available
// funds used per trade, corePositionPct the share of holdings kept as core.
func NewManager(maxPositionFraction, corePositionPct decimal.Decimal) *Manager {
	return &Manager{
		maxPositionFraction: maxPositionFraction,
		corePositionPct:     corePositionPct,
	}
}

// BuyQuantity result of CalculateBuyQuantity.
type BuyQuantity struct {
	USDTToUse decimal.Decimal `json:"usdt_to_use"`
	Quantity  decimal.Decimal `json:"qrl_quantity"`
}

// CalculateBuyQuantity sizes a buy from the available quote balance.
func (m *Manager) CalculateBuyQuantity(usdtBalance, price decimal.Decimal) BuyQuantity {
	usdtToUse := usdtBalance.Mul(m.maxPositionFraction)
	if !price.IsPositive() {
		return BuyQuantity{USDTToUse: usdtToUse, Quantity: decimal.Zero}
	}
	return BuyQuantity{USDTToUse: usdtToUse, Quantity: usdtToUse.Div(price)}
}

// SellQuantity result of CalculateSellQuantity.
type SellQuantity struct {
	TradeableQty decimal.Decimal `json:"tradeable_qrl"`
	Quantity     decimal.Decimal `json:"qrl_to_sell"`
}

// CalculateSellQuantity sizes a sell from holdings above the core floor.
func (m *Manager) CalculateSellQuantity(totalQty, coreQty decimal.Decimal) SellQuantity {
	tradeable := totalQty.Sub(coreQty)
	if !tradeable.IsPositive() {
		return SellQuantity{TradeableQty: decimal.Zero, Quantity: decimal.Zero}
	}
	return SellQuantity{TradeableQty: tradeable, Quantity: tradeable.Mul(m.maxPositionFraction)}
}

// AverageCostResult result of CalculateNewAverageCost.
type AverageCostResult struct {
	NewAvgCost       decimal.Decimal `json:"new_avg_cost"`
	NewTotalInvested decimal.Decimal `json:"new_total_invested"`
	NewQty           decimal.Decimal `json:"new_qrl_balance"`
}

// CalculateNewAverageCost weighted-average cost update after a buy.
func (m *Manager) CalculateNewAverageCost(oldAvgCost, oldTotalInvested, qtyBefore, buyPrice, buyQty, usdtSpent decimal.Decimal) AverageCostResult {
	newInvested := oldTotalInvested.Add(usdtSpent)
	newQty := qtyBefore.Add(buyQty)

	newAvg := buyPrice
	if newQty.IsPositive() {
		newAvg = newInvested.Div(newQty)
	}

	return AverageCostResult{
		NewAvgCost:       newAvg,
		NewTotalInvested: newInvested,
		NewQty:           newQty,
	}
}

// PnLResult result of CalculatePnLAfterSell.
type PnLResult struct {
	RealizedDelta  decimal.Decimal `json:"realized_pnl_from_trade"`
	NewRealizedPnL decimal.Decimal `json:"new_realized_pnl"`
	NewQty         decimal.Decimal `json:"new_qrl_balance"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	TotalInvested  decimal.Decimal `json:"total_invested"`
}

// CalculatePnLAfterSell books realized PnL. The average cost is unchanged by a sell.
func (m *Manager) CalculatePnLAfterSell(avgCost, sellPrice, sellQty, qtyBefore, oldRealizedPnL decimal.Decimal) PnLResult {
	realizedDelta := sellPrice.Sub(avgCost).Mul(sellQty)
	newQty := qtyBefore.Sub(sellQty)

	unrealized := decimal.Zero
	if newQty.IsPositive() {
		unrealized = sellPrice.Sub(avgCost).Mul(newQty)
	}

	return PnLResult{
		RealizedDelta:  realizedDelta,
		NewRealizedPnL: oldRealizedPnL.Add(realizedDelta),
		NewQty:         newQty,
		UnrealizedPnL:  unrealized,
		AvgCost:        avgCost,
		TotalInvested:  avgCost.Mul(newQty),
	}
}

// ApplyBuy returns the position after a filled buy.
func (m *Manager) ApplyBuy(pos domain.Position, price, qty, usdtSpent decimal.Decimal, now time.Time) domain.Position {
	// holdings without a recorded basis are valued at the buy price before blending
	if pos.TotalQty.IsPositive() && !pos.TotalInvested.IsPositive() {
		pos.AverageCost = price
		pos.TotalInvested = pos.TotalQty.Mul(price)
	}
	res := m.CalculateNewAverageCost(pos.AverageCost, pos.TotalInvested, pos.TotalQty, price, qty, usdtSpent)

	out := pos
	out.TotalQty = res.NewQty
	out.AverageCost = res.NewAvgCost
	out.TotalInvested = res.NewTotalInvested
	out.CoreQty = res.NewQty.Mul(m.corePositionPct)
	out.UnrealizedPnL = price.Sub(res.NewAvgCost).Mul(res.NewQty)
	out.LastUpdated = now
	return out
}

// ApplySell returns the position after a filled sell.
func (m *Manager) ApplySell(pos domain.Position, price, qty decimal.Decimal, now time.Time) domain.Position {
	res := m.CalculatePnLAfterSell(pos.AverageCost, price, qty, pos.TotalQty, pos.RealizedPnL)

	out := pos
	out.TotalQty = res.NewQty
	out.RealizedPnL = res.NewRealizedPnL
	out.UnrealizedPnL = res.UnrealizedPnL
	out.TotalInvested = res.TotalInvested
	if out.CoreQty.GreaterThan(out.TotalQty) {
		out.CoreQty = out.TotalQty
	}
	out.LastUpdated = now
	return out
}

// MarkToMarket recomputes unrealized PnL at price.
func (m *Manager) MarkToMarket(pos domain.Position, price decimal.Decimal, now time.Time) domain.Position {
	out := pos
	if pos.TotalQty.IsPositive() && price.IsPositive() {
		out.UnrealizedPnL = price.Sub(pos.AverageCost).Mul(pos.TotalQty)
	} else {
		out.UnrealizedPnL = decimal.Zero
	}
	out.LastUpdated = now
	return out
}

// DefaultPosition derives a position from holdings when none has been recorded.
// The holdings are valued at costPrice, normally the current market price.
func (m *Manager) DefaultPosition(totalQty, costPrice decimal.Decimal, now time.Time) domain.Position {
	if !totalQty.IsPositive() {
		return domain.EmptyPosition(now)
	}
	if costPrice.IsNegative() {
		costPrice = decimal.Zero
	}
	pos, err := domain.NewPosition(totalQty, totalQty.Mul(m.corePositionPct), costPrice, now)
	if err != nil {
		return domain.EmptyPosition(now)
	}
	return pos
}
