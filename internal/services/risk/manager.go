// Package risk gates proposed trades against trade limits and position protection.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

const reasonPassed = "All risk checks passed"

// Manager runs the risk checks. It is stateless apart from its limits.
type Manager struct {
	maxDailyTrades   int
	minTradeInterval time.Duration
	now              func() time.Time
}

// NewManager creates a risk manager. now defaults to time.Now.
func NewManager(maxDailyTrades int, minTradeInterval time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		maxDailyTrades:   maxDailyTrades,
		minTradeInterval: minTradeInterval,
		now:              now,
	}
}

// Input everything check_all needs for one evaluation.
type Input struct {
	Signal        domain.Action
	DailyTrades   int
	LastTradeTime *time.Time
	// Position carries the core/total layers; nil means no layer data is known.
	Position    *domain.Position
	USDTBalance decimal.Decimal
}

// CheckDailyLimit fails once the daily trade budget is used up.
func (m *Manager) CheckDailyLimit(dailyTrades int) domain.RiskCheckResult {
	if dailyTrades >= m.maxDailyTrades {
		return domain.RiskCheckResult{
			Allowed:        false,
			Reason:         fmt.Sprintf("Daily trade limit reached (%d/%d)", dailyTrades, m.maxDailyTrades),
			DailyTrades:    dailyTrades,
			MaxDailyTrades: m.maxDailyTrades,
		}
	}
	return domain.RiskCheckResult{
		Allowed:        true,
		Reason:         fmt.Sprintf("Daily trades: %d/%d", dailyTrades, m.maxDailyTrades),
		DailyTrades:    dailyTrades,
		MaxDailyTrades: m.maxDailyTrades,
	}
}

// CheckTradeInterval fails when the previous trade is too recent. Passes without a prior trade.
func (m *Manager) CheckTradeInterval(lastTradeTime *time.Time) domain.RiskCheckResult {
	if lastTradeTime == nil || lastTradeTime.IsZero() {
		return domain.RiskCheckResult{Allowed: true, Reason: "No previous trade"}
	}

	elapsed := m.now().Sub(*lastTradeTime)
	elapsedSec := int64(elapsed / time.Second)
	minSec := int64(m.minTradeInterval / time.Second)
	if elapsed < m.minTradeInterval {
		return domain.RiskCheckResult{
			Allowed:        false,
			Reason:         fmt.Sprintf("Trade interval too short (%ds < %ds)", elapsedSec, minSec),
			ElapsedSeconds: elapsedSec,
		}
	}

	return domain.RiskCheckResult{
		Allowed:        true,
		Reason:         fmt.Sprintf("Trade interval OK (%ds)", elapsedSec),
		ElapsedSeconds: elapsedSec,
	}
}

// CheckSellProtection fails when nothing outside the core position can be sold.
func (m *Manager) CheckSellProtection(pos *domain.Position) domain.RiskCheckResult {
	if pos == nil {
		return domain.RiskCheckResult{Allowed: false, Reason: "No position layers data"}
	}

	tradeable := pos.TradeableQty()
	if !tradeable.IsPositive() {
		return domain.RiskCheckResult{
			Allowed:      false,
			Reason:       "No tradeable QRL (all in core position)",
			TradeableQty: decimal.Zero,
		}
	}

	return domain.RiskCheckResult{
		Allowed:      true,
		Reason:       fmt.Sprintf("Tradeable QRL: %s", tradeable.String()),
		TradeableQty: tradeable,
	}
}

// CheckBuyProtection fails without quote balance.
func (m *Manager) CheckBuyProtection(usdtBalance decimal.Decimal) domain.RiskCheckResult {
	if !usdtBalance.IsPositive() {
		return domain.RiskCheckResult{Allowed: false, Reason: "Insufficient USDT balance"}
	}
	return domain.RiskCheckResult{Allowed: true, Reason: "USDT balance available"}
}

// CheckAll runs daily limit, trade interval and signal protection in that order
// and returns the first failure.
func (m *Manager) CheckAll(in Input) domain.RiskCheckResult {
	daily := m.CheckDailyLimit(in.DailyTrades)
	if !daily.Allowed {
		return daily
	}

	interval := m.CheckTradeInterval(in.LastTradeTime)
	if !interval.Allowed {
		interval.DailyTrades = in.DailyTrades
		return interval
	}

	switch in.Signal {
	case domain.ActionSell:
		if res := m.CheckSellProtection(in.Position); !res.Allowed {
			res.DailyTrades = in.DailyTrades
			return res
		}
	case domain.ActionBuy:
		if res := m.CheckBuyProtection(in.USDTBalance); !res.Allowed {
			res.DailyTrades = in.DailyTrades
			return res
		}
	}

	return domain.RiskCheckResult{
		Allowed:        true,
		Reason:         reasonPassed,
		DailyTrades:    in.DailyTrades,
		MaxDailyTrades: m.maxDailyTrades,
		ElapsedSeconds: interval.ElapsedSeconds,
	}
}
