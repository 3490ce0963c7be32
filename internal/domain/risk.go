package domain

import "github.com/shopspring/decimal"

// RiskCheckResult outcome of a single risk gate or of the whole chain.
type RiskCheckResult struct {
	Allowed        bool            `json:"allowed"`
	Reason         string          `json:"reason"`
	DailyTrades    int             `json:"daily_trades,omitempty"`
	MaxDailyTrades int             `json:"max_daily_trades,omitempty"`
	ElapsedSeconds int64           `json:"elapsed_seconds,omitempty"`
	TradeableQty   decimal.Decimal `json:"tradeable_qty,omitempty"`
}
