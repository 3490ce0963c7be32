package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawBalance balance entry as reported by the exchange.
type RawBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountInfo exchange account response; lists every asset.
type AccountInfo struct {
	Balances []RawBalance `json:"balances"`
}

// OrderResult result of a market order placement.
type OrderResult struct {
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"`
	ExecutedQty decimal.Decimal `json:"executed_qty"`
	// QuoteQty quote asset spent or received, zero when the exchange does not report it.
	QuoteQty decimal.Decimal `json:"quote_qty"`
}

// FillPrice average execution price, ok is false when the fill is not reported.
func (r OrderResult) FillPrice() (decimal.Decimal, bool) {
	if !r.ExecutedQty.IsPositive() || !r.QuoteQty.IsPositive() {
		return decimal.Zero, false
	}
	return r.QuoteQty.Div(r.ExecutedQty), true
}

// Trade statuses.
const (
	TradeStatusFilled = "filled"
	TradeStatusDryRun = "dry_run"
	TradeStatusFailed = "failed"
)

// TradeRecord executed (or simulated) trade kept in history.
type TradeRecord struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Action       Action          `json:"action"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	NotionalUSDT decimal.Decimal `json:"notional_usdt"`
	OrderID      string          `json:"order_id,omitempty"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
