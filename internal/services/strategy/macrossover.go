// Package strategy generates trading signals from price history.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/pkg/indicators"
)

// SignalResult signal with the moving averages that produced it.
type SignalResult struct {
	Signal  domain.Action   `json:"signal"`
	ShortMA decimal.Decimal `json:"short_ma"`
	LongMA  decimal.Decimal `json:"long_ma"`
	Reason  string          `json:"reason"`
}

// MACrossover simple moving-average crossover strategy.
type MACrossover struct {
	shortPeriod int
	longPeriod  int
}

// NewMACrossover creates the strategy. shortPeriod must be below longPeriod.
func NewMACrossover(shortPeriod, longPeriod int) (*MACrossover, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d/%d", shortPeriod, longPeriod)
	}
	if shortPeriod >= longPeriod {
		return nil, fmt.Errorf("short period %d must be below long period %d", shortPeriod, longPeriod)
	}
	return &MACrossover{shortPeriod: shortPeriod, longPeriod: longPeriod}, nil
}

// LongPeriod number of history points the strategy needs.
func (s *MACrossover) LongPeriod() int {
	return s.longPeriod
}

// GenerateSignal history is most-recent-first. Short history yields HOLD.
// price and avgCost are accepted for context and reported through the reason only.
func (s *MACrossover) GenerateSignal(price decimal.Decimal, history []decimal.Decimal, avgCost decimal.Decimal) SignalResult {
	if len(history) < s.longPeriod {
		return SignalResult{
			Signal: domain.ActionHold,
			Reason: fmt.Sprintf("insufficient history (%d < %d)", len(history), s.longPeriod),
		}
	}

	// lengths are validated above, SMA cannot fail here
	shortMA, _ := indicators.SMA(history, s.shortPeriod)
	longMA, _ := indicators.SMA(history, s.longPeriod)

	res := SignalResult{ShortMA: shortMA, LongMA: longMA}
	switch shortMA.Cmp(longMA) {
	case 1:
		res.Signal = domain.ActionBuy
		res.Reason = fmt.Sprintf("short MA %s above long MA %s", shortMA.StringFixed(6), longMA.StringFixed(6))
	case -1:
		res.Signal = domain.ActionSell
		res.Reason = fmt.Sprintf("short MA %s below long MA %s", shortMA.StringFixed(6), longMA.StringFixed(6))
	default:
		res.Signal = domain.ActionHold
		res.Reason = "moving averages equal"
	}

	if avgCost.IsPositive() && price.IsPositive() {
		res.Reason = fmt.Sprintf("%s, price %s vs avg cost %s", res.Reason, price.String(), avgCost.String())
	}

	return res
}

// Cross classifies the MA relationship of a most-recent-first history.
func Cross(history []decimal.Decimal, shortPeriod, longPeriod int) domain.MASignal {
	sig := domain.MASignal{ShortPeriod: shortPeriod, LongPeriod: longPeriod}
	if len(history) < longPeriod || shortPeriod <= 0 || shortPeriod > longPeriod {
		sig.Cross = domain.CrossInsufficient
		return sig
	}

	sig.ShortMA, _ = indicators.SMA(history, shortPeriod)
	sig.LongMA, _ = indicators.SMA(history, longPeriod)
	switch sig.ShortMA.Cmp(sig.LongMA) {
	case 1:
		sig.Cross = domain.CrossGolden
	case -1:
		sig.Cross = domain.CrossDeath
	default:
		sig.Cross = domain.CrossNone
	}
	return sig
}
