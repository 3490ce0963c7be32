package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

var qrlUSDT = domain.Pair{From: "QRL", To: "USDT"}

func TestBuilder_Build(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	price := decimal.NewFromFloat(0.25)

	b := NewBuilder(qrlUSDT)
	snap := b.Build(Input{
		Account: domain.AccountInfo{Balances: []domain.RawBalance{
			{Asset: "BTC", Free: "1", Locked: "0"},
			{Asset: "QRL", Free: "100.5", Locked: "20"},
		}},
		Price:     &price,
		Source:    domain.SourceExchange,
		Timestamp: now,
	})

	require.Len(t, snap.Balances, 2)
	qrl := snap.Asset("QRL")
	assert.True(t, qrl.Total.Equal(decimal.NewFromFloat(120.5)))
	require.NotNil(t, qrl.Price)
	assert.True(t, qrl.Price.Equal(price))

	usdt, ok := snap.Balances["USDT"]
	require.True(t, ok, "omitted zero balance must be present")
	assert.True(t, usdt.Total.IsZero())

	p, ok := snap.Price("QRLUSDT")
	require.True(t, ok)
	assert.True(t, p.Equal(price))
	assert.False(t, snap.Metadata.PriceMissing)
	assert.Equal(t, domain.PriceSourceExchange, snap.Metadata.PriceSource)
	assert.Equal(t, now, snap.Metadata.Timestamp)
}

func TestBuilder_BuildMissingPrice(t *testing.T) {
	b := NewBuilder(qrlUSDT)

	for name, price := range map[string]*decimal.Decimal{
		"nil":  nil,
		"zero": func() *decimal.Decimal { d := decimal.Zero; return &d }(),
	} {
		t.Run(name, func(t *testing.T) {
			snap := b.Build(Input{
				Account: domain.AccountInfo{Balances: []domain.RawBalance{{Asset: "USDT", Free: "50", Locked: "bad"}}},
				Price:   price,
			})

			assert.True(t, snap.Metadata.PriceMissing)
			assert.Equal(t, domain.PriceSourceMissing, snap.Metadata.PriceSource)
			assert.Empty(t, snap.Prices)
			assert.Nil(t, snap.Asset("QRL").Price)
			assert.True(t, snap.Asset("USDT").Total.Equal(decimal.NewFromInt(50)))
		})
	}
}

func TestBuilder_Value(t *testing.T) {
	b := NewBuilder(qrlUSDT)
	price := decimal.NewFromInt(2)
	snap := b.Build(Input{
		Account: domain.AccountInfo{Balances: []domain.RawBalance{
			{Asset: "QRL", Free: "10"},
			{Asset: "USDT", Free: "80"},
		}},
		Price: &price,
	})

	v := b.Value(snap)
	assert.True(t, v.TotalValueUSDT.Equal(decimal.NewFromInt(100)))
	assert.True(t, v.BaseValue.Equal(decimal.NewFromInt(20)))
	assert.False(t, v.PriceMissing)

	noPrice := b.Value(b.Build(Input{Account: domain.AccountInfo{Balances: []domain.RawBalance{{Asset: "USDT", Free: "5"}}}}))
	assert.True(t, noPrice.PriceMissing)
	assert.True(t, noPrice.TotalValueUSDT.Equal(decimal.NewFromInt(5)))
}
