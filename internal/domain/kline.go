package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kline OHLCV candle returned by exchanges.
type Kline struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// ClosesNewestFirst returns close prices ordered most-recent-first.
// Exchanges return candles oldest first.
func ClosesNewestFirst(klines []Kline) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(klines))
	for i := len(klines) - 1; i >= 0; i-- {
		out = append(out, klines[i].Close)
	}
	return out
}

// Ticker24h rolling 24h statistics of a symbol.
type Ticker24h struct {
	Symbol             string          `json:"symbol"`
	LastPrice          decimal.Decimal `json:"last_price"`
	Volume             decimal.Decimal `json:"volume"`
	PriceChangePercent decimal.Decimal `json:"price_change_percent"`
	HighPrice          decimal.Decimal `json:"high_price"`
	LowPrice           decimal.Decimal `json:"low_price"`
}
