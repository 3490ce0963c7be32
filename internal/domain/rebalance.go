package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rebalance strategies.
const (
	StrategySymmetric   = "symmetric"
	StrategyIntelligent = "intelligent"
)

// MA cross states.
const (
	CrossGolden       = "golden"
	CrossDeath        = "death"
	CrossNone         = "none"
	CrossInsufficient = "insufficient"
)

// MASignal moving-average diagnostics attached to an intelligent plan.
type MASignal struct {
	ShortPeriod int             `json:"short_period"`
	LongPeriod  int             `json:"long_period"`
	ShortMA     decimal.Decimal `json:"short_ma"`
	LongMA      decimal.Decimal `json:"long_ma"`
	Cross       string          `json:"cross"`
	Passed      bool            `json:"passed"`
}

// CostBasisCheck cost-basis gate diagnostics.
type CostBasisCheck struct {
	AverageCost decimal.Decimal `json:"average_cost"`
	SellTarget  decimal.Decimal `json:"sell_target"`
	Skipped     bool            `json:"skipped,omitempty"`
	Passed      bool            `json:"passed"`
}

// RebalancePlan output of a rebalance planner.
type RebalancePlan struct {
	Timestamp       time.Time       `json:"timestamp"`
	Symbol          string          `json:"symbol"`
	Strategy        string          `json:"strategy"`
	Price           decimal.Decimal `json:"price"`
	QRLBalance      decimal.Decimal `json:"qrl_balance"`
	USDTBalance     decimal.Decimal `json:"usdt_balance"`
	QRLValueUSDT    decimal.Decimal `json:"qrl_value_usdt"`
	USDTValueUSDT   decimal.Decimal `json:"usdt_value_usdt"`
	TotalValueUSDT  decimal.Decimal `json:"total_value_usdt"`
	TargetValueUSDT decimal.Decimal `json:"target_value_usdt"`
	TargetRatio     decimal.Decimal `json:"target_ratio"`
	Action          Action          `json:"action"`
	Quantity        decimal.Decimal `json:"quantity"`
	NotionalUSDT    decimal.Decimal `json:"notional_usdt"`
	Reason          string          `json:"reason"`
	MA              *MASignal       `json:"ma,omitempty"`
	CostBasis       *CostBasisCheck `json:"cost_basis,omitempty"`
	Tiers           *PositionTiers  `json:"tiers,omitempty"`
}

// Hold converts the plan into a HOLD with the given reason and clears the blocked trade size.
func (p RebalancePlan) Hold(reason string) RebalancePlan {
	p.Action = ActionHold
	p.Quantity = decimal.Zero
	p.NotionalUSDT = decimal.Zero
	p.Reason = reason
	return p
}
