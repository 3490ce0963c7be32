package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tags where the snapshot price came from.
type PriceSource string

const (
	PriceSourceExchange  PriceSource = "exchange"
	PriceSourceCache     PriceSource = "cache"
	PriceSourceCacheLast PriceSource = "cache-last"
	PriceSourceLegacy    PriceSource = "legacy"
	PriceSourceMissing   PriceSource = "missing"
)

// AssetBalance free/locked/total amounts of a single asset.
type AssetBalance struct {
	Free   decimal.Decimal  `json:"free"`
	Locked decimal.Decimal  `json:"locked"`
	Total  decimal.Decimal  `json:"total"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

// SnapshotMetadata describes how a snapshot was produced.
type SnapshotMetadata struct {
	Source       string      `json:"source"`
	PriceSource  PriceSource `json:"price_source"`
	PriceMissing bool        `json:"price_missing"`
	Timestamp    time.Time   `json:"timestamp"`
}

// BalanceSnapshot point-in-time view of tracked balances and prices.
// Consumers must treat it as a value: use Clone or WithMetadata to derive new ones.
type BalanceSnapshot struct {
	Balances map[string]AssetBalance   `json:"balances"`
	Prices   map[string]decimal.Decimal `json:"prices"`
	Metadata SnapshotMetadata           `json:"metadata"`
}

// Asset returns the balance of the asset or a zero balance.
func (s BalanceSnapshot) Asset(name string) AssetBalance {
	if b, ok := s.Balances[name]; ok {
		return b
	}
	return AssetBalance{}
}

// Price returns the price for symbol if present and positive.
func (s BalanceSnapshot) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := s.Prices[symbol]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// Clone returns a deep copy.
func (s BalanceSnapshot) Clone() BalanceSnapshot {
	out := BalanceSnapshot{
		Balances: make(map[string]AssetBalance, len(s.Balances)),
		Prices:   make(map[string]decimal.Decimal, len(s.Prices)),
		Metadata: s.Metadata,
	}
	for asset, b := range s.Balances {
		if b.Price != nil {
			p := *b.Price
			b.Price = &p
		}
		out.Balances[asset] = b
	}
	for symbol, p := range s.Prices {
		out.Prices[symbol] = p
	}
	return out
}

// WithMetadata derives a copy carrying the given metadata.
func (s BalanceSnapshot) WithMetadata(m SnapshotMetadata) BalanceSnapshot {
	out := s.Clone()
	out.Metadata = m
	return out
}

// WithPrice derives a copy with the price of symbol set on both the price map and the base asset.
func (s BalanceSnapshot) WithPrice(symbol, baseAsset string, price decimal.Decimal, source PriceSource) BalanceSnapshot {
	out := s.Clone()
	out.Prices[symbol] = price
	b := out.Balances[baseAsset]
	p := price
	b.Price = &p
	out.Balances[baseAsset] = b
	out.Metadata.PriceSource = source
	out.Metadata.PriceMissing = false
	return out
}
