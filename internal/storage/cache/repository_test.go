package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestRepo() (*Repository, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewRepository(NewMemoryStore(clock.Now)), clock
}

func TestRepository_BalanceSnapshotExpires(t *testing.T) {
	repo, clock := newTestRepo()
	ctx := context.Background()

	snap := domain.BalanceSnapshot{
		Balances: map[string]domain.AssetBalance{
			"QRL": {Free: decimal.NewFromInt(10), Total: decimal.NewFromInt(10)},
		},
		Metadata: domain.SnapshotMetadata{Source: domain.SourceExchange, Timestamp: clock.now},
	}
	require.NoError(t, repo.SaveBalanceSnapshot(ctx, snap))

	got, err := repo.BalanceSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, got.Asset("QRL").Total.Equal(decimal.NewFromInt(10)))

	clock.now = clock.now.Add(91 * time.Second)
	_, err = repo.BalanceSnapshot(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	last, err := repo.LastBalanceSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, last.Asset("QRL").Total.Equal(decimal.NewFromInt(10)))
}

func TestRepository_PriceKeys(t *testing.T) {
	repo, clock := newTestRepo()
	ctx := context.Background()

	require.NoError(t, repo.CachePrice(ctx, "QRLUSDT", decimal.RequireFromString("0.25"), clock.now))

	p, err := repo.CachedPrice(ctx, "QRLUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.25")))

	clock.now = clock.now.Add(301 * time.Second)
	_, err = repo.CachedPrice(ctx, "QRLUSDT")
	require.ErrorIs(t, err, ErrNotFound)

	p, err = repo.LastKnownPrice(ctx, "QRLUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.25")))

	clock.now = clock.now.Add(24 * time.Hour)
	_, err = repo.LastKnownPrice(ctx, "QRLUSDT")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_LegacyPrice(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	_, err := repo.LegacyPrice(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetLegacyPrice(ctx, decimal.RequireFromString("0.31")))
	p, err := repo.LegacyPrice(ctx)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.31")))
}

func TestRepository_PriceHistoryBounded(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	for i := 1; i <= 105; i++ {
		require.NoError(t, repo.AppendPriceHistory(ctx, "QRLUSDT", decimal.NewFromInt(int64(i))))
	}

	all, err := repo.PriceHistory(ctx, "QRLUSDT", 1000)
	require.NoError(t, err)
	require.Len(t, all, 100)
	assert.True(t, all[0].Equal(decimal.NewFromInt(105)), "most recent first")
	assert.True(t, all[99].Equal(decimal.NewFromInt(6)))

	some, err := repo.PriceHistory(ctx, "QRLUSDT", 3)
	require.NoError(t, err)
	require.Len(t, some, 3)

	require.NoError(t, repo.ReplacePriceHistory(ctx, "QRLUSDT", []decimal.Decimal{decimal.NewFromInt(9), decimal.NewFromInt(8)}))
	replaced, err := repo.PriceHistory(ctx, "QRLUSDT", 10)
	require.NoError(t, err)
	require.Len(t, replaced, 2)
	assert.True(t, replaced[0].Equal(decimal.NewFromInt(9)))
}

func TestRepository_RebalancePlansByStrategy(t *testing.T) {
	repo, clock := newTestRepo()
	ctx := context.Background()

	for i := 0; i < 55; i++ {
		plan := domain.RebalancePlan{
			Timestamp: clock.now.Add(time.Duration(i) * time.Minute),
			Symbol:    "QRLUSDT",
			Strategy:  domain.StrategySymmetric,
			Action:    domain.ActionHold,
			Reason:    fmt.Sprintf("plan %d", i),
		}
		require.NoError(t, repo.SaveRebalancePlan(ctx, plan))
	}
	require.NoError(t, repo.SaveRebalancePlan(ctx, domain.RebalancePlan{
		Symbol:   "QRLUSDT",
		Strategy: domain.StrategyIntelligent,
		Action:   domain.ActionBuy,
		Reason:   "intelligent",
	}))

	last, err := repo.LastRebalancePlan(ctx, "QRLUSDT", domain.StrategySymmetric)
	require.NoError(t, err)
	assert.Equal(t, "plan 54", last.Reason)

	history, err := repo.RebalanceHistory(ctx, "QRLUSDT", domain.StrategySymmetric, 0)
	require.NoError(t, err)
	require.Len(t, history, 50)
	assert.Equal(t, "plan 54", history[0].Reason)

	smart, err := repo.LastRebalancePlan(ctx, "QRLUSDT", domain.StrategyIntelligent)
	require.NoError(t, err)
	assert.Equal(t, "intelligent", smart.Reason)
}

func TestRepository_TradeStats(t *testing.T) {
	repo, clock := newTestRepo()
	ctx := context.Background()

	n, err := repo.DailyTrades(ctx, "QRLUSDT", clock.now)
	require.NoError(t, err)
	assert.Zero(t, n)

	last, err := repo.LastTradeTime(ctx, "QRLUSDT")
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = repo.IncrementDailyTrades(ctx, "QRLUSDT", clock.now)
	require.NoError(t, err)
	n, err = repo.IncrementDailyTrades(ctx, "QRLUSDT", clock.now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.DailyTrades(ctx, "QRLUSDT", clock.now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "counter is per day")

	require.NoError(t, repo.SetLastTradeTime(ctx, "QRLUSDT", clock.now))
	last, err = repo.LastTradeTime(ctx, "QRLUSDT")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(clock.now))

	require.NoError(t, repo.AddTradeRecord(ctx, domain.TradeRecord{ID: "t1", Symbol: "QRLUSDT", Action: domain.ActionBuy}))
	require.NoError(t, repo.AddTradeRecord(ctx, domain.TradeRecord{ID: "t2", Symbol: "QRLUSDT", Action: domain.ActionSell}))
	trades, err := repo.TradeHistory(ctx, "QRLUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t2", trades[0].ID)
}

func TestRepository_Position(t *testing.T) {
	repo, clock := newTestRepo()
	ctx := context.Background()

	pos, err := repo.Position(ctx, "QRLUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos)

	stored, err := domain.NewPosition(decimal.NewFromInt(100), decimal.NewFromInt(70), decimal.RequireFromString("0.2"), clock.now)
	require.NoError(t, err)
	require.NoError(t, repo.SavePosition(ctx, "QRLUSDT", stored))

	pos, err = repo.Position(ctx, "QRLUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.CoreQty.Equal(decimal.NewFromInt(70)))
	assert.True(t, pos.TotalInvested.Equal(decimal.NewFromInt(20)))
}

func TestRepository_Counters(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	n, err := repo.Counter(ctx, "price_missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.IncrCounter(ctx, "price_missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Counter(ctx, "price_missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.ResetCounter(ctx, "price_missing"))
	n, err = repo.IncrCounter(ctx, "price_missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
