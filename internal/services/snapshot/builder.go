// Package snapshot normalizes raw exchange responses into balance snapshots.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// Builder restricts account data to the assets of a single pair.
type Builder struct {
	pair domain.Pair
}

// NewBuilder creates a builder for pair.
func NewBuilder(pair domain.Pair) *Builder {
	return &Builder{pair: pair}
}

// Input raw data for a snapshot.
type Input struct {
	Account     domain.AccountInfo
	Price       *decimal.Decimal
	PriceSource domain.PriceSource
	Source      string
	Timestamp   time.Time
}

// Build produces a snapshot with every tracked asset present. A missing or
// non-positive price marks the snapshot as price-missing and leaves the price out.
func (b *Builder) Build(in Input) domain.BalanceSnapshot {
	snap := domain.BalanceSnapshot{
		Balances: make(map[string]domain.AssetBalance, 2),
		Prices:   make(map[string]decimal.Decimal, 1),
		Metadata: domain.SnapshotMetadata{
			Source:    in.Source,
			Timestamp: in.Timestamp,
		},
	}

	for _, asset := range b.pair.Assets() {
		snap.Balances[asset] = domain.AssetBalance{
			Free:   decimal.Zero,
			Locked: decimal.Zero,
			Total:  decimal.Zero,
		}
	}

	for _, raw := range in.Account.Balances {
		if _, tracked := snap.Balances[raw.Asset]; !tracked {
			continue
		}
		free := parseAmount(raw.Free)
		locked := parseAmount(raw.Locked)
		snap.Balances[raw.Asset] = domain.AssetBalance{
			Free:   free,
			Locked: locked,
			Total:  free.Add(locked),
		}
	}

	if in.Price == nil || !in.Price.IsPositive() {
		snap.Metadata.PriceMissing = true
		snap.Metadata.PriceSource = domain.PriceSourceMissing
		return snap
	}

	price := *in.Price
	snap.Prices[b.pair.Symbol()] = price
	base := snap.Balances[b.pair.From]
	base.Price = &price
	snap.Balances[b.pair.From] = base
	snap.Metadata.PriceSource = in.PriceSource
	if snap.Metadata.PriceSource == "" {
		snap.Metadata.PriceSource = domain.PriceSourceExchange
	}

	return snap
}

// parseAmount treats unparseable exchange amounts as zero.
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Valuation account value derived from a snapshot.
type Valuation struct {
	BaseTotal      decimal.Decimal `json:"qrl_total"`
	QuoteTotal     decimal.Decimal `json:"usdt_total"`
	Price          decimal.Decimal `json:"price"`
	BaseValue      decimal.Decimal `json:"qrl_value_usdt"`
	TotalValueUSDT decimal.Decimal `json:"total_value_usdt"`
	PriceMissing   bool            `json:"price_missing"`
}

// Value computes account valuation; without a price only the quote side is counted.
func (b *Builder) Value(snap domain.BalanceSnapshot) Valuation {
	base := snap.Asset(b.pair.From).Total
	quote := snap.Asset(b.pair.To).Total
	price, ok := snap.Price(b.pair.Symbol())
	if !ok {
		return Valuation{
			BaseTotal:      base,
			QuoteTotal:     quote,
			Price:          decimal.Zero,
			BaseValue:      decimal.Zero,
			TotalValueUSDT: quote,
			PriceMissing:   true,
		}
	}

	baseValue := base.Mul(price)
	return Valuation{
		BaseTotal:      base,
		QuoteTotal:     quote,
		Price:          price,
		BaseValue:      baseValue,
		TotalValueUSDT: baseValue.Add(quote),
	}
}
