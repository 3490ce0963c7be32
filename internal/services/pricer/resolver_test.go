package pricer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/storage/cache"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

var qrl = domain.Pair{From: "QRL", To: "USDT"}

func TestResolver_ExchangeWritesBack(t *testing.T) {
	repo := cache.NewRepository(cache.NewMemoryStore(nil))
	fetcher := &mockFetcher{}
	fetcher.On("TickerPrice", mock.Anything, "QRLUSDT").Return(decimal.RequireFromString("0.5"), nil)

	r := NewResolver(zap.NewNop(), qrl, fetcher, repo)
	q, err := r.Resolve(context.Background(), "QRLUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceSourceExchange, q.Source)

	cached, err := repo.CachedPrice(context.Background(), "QRLUSDT")
	require.NoError(t, err)
	assert.True(t, cached.Equal(decimal.RequireFromString("0.5")))

	legacy, err := repo.LegacyPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, legacy.Equal(decimal.RequireFromString("0.5")))
}

func TestResolver_FallbackChain(t *testing.T) {
	ctx := context.Background()
	down := errors.New("exchange down")

	t.Run("cache", func(t *testing.T) {
		repo := cache.NewRepository(cache.NewMemoryStore(nil))
		require.NoError(t, repo.CachePrice(ctx, "QRLUSDT", decimal.NewFromInt(2), time.Now()))
		fetcher := &mockFetcher{}
		fetcher.On("TickerPrice", mock.Anything, "QRLUSDT").Return(decimal.Zero, down)

		q, err := NewResolver(zap.NewNop(), qrl, fetcher, repo).Resolve(ctx, "QRLUSDT")
		require.NoError(t, err)
		assert.Equal(t, domain.PriceSourceCache, q.Source)
	})

	t.Run("cache-last", func(t *testing.T) {
		now := time.Now()
		clock := func() time.Time { return now }
		store := cache.NewMemoryStore(clock)
		repo := cache.NewRepository(store)
		require.NoError(t, repo.CachePrice(ctx, "QRLUSDT", decimal.NewFromInt(3), now))
		now = now.Add(10 * time.Minute)

		fetcher := &mockFetcher{}
		fetcher.On("TickerPrice", mock.Anything, "QRLUSDT").Return(decimal.Zero, down)

		q, err := NewResolver(zap.NewNop(), qrl, fetcher, repo).Resolve(ctx, "QRLUSDT")
		require.NoError(t, err)
		assert.Equal(t, domain.PriceSourceCacheLast, q.Source)
		assert.True(t, q.Price.Equal(decimal.NewFromInt(3)))
	})

	t.Run("legacy only for traded symbol", func(t *testing.T) {
		repo := cache.NewRepository(cache.NewMemoryStore(nil))
		require.NoError(t, repo.SetLegacyPrice(ctx, decimal.NewFromInt(4)))
		fetcher := &mockFetcher{}
		fetcher.On("TickerPrice", mock.Anything, mock.Anything).Return(decimal.Zero, down)
		r := NewResolver(zap.NewNop(), qrl, fetcher, repo)

		q, err := r.Resolve(ctx, "QRLUSDT")
		require.NoError(t, err)
		assert.Equal(t, domain.PriceSourceLegacy, q.Source)

		_, err = r.Resolve(ctx, "BTCUSDT")
		require.ErrorIs(t, err, ErrPriceUnavailable)
	})

	t.Run("nothing cached", func(t *testing.T) {
		repo := cache.NewRepository(cache.NewMemoryStore(nil))
		fetcher := &mockFetcher{}
		fetcher.On("TickerPrice", mock.Anything, "QRLUSDT").Return(decimal.Zero, down)

		_, err := NewResolver(zap.NewNop(), qrl, fetcher, repo).Resolve(ctx, "QRLUSDT")
		require.ErrorIs(t, err, ErrPriceUnavailable)
	})
}

func TestResolver_RejectsNonPositiveExchangePrice(t *testing.T) {
	repo := cache.NewRepository(cache.NewMemoryStore(nil))
	fetcher := &mockFetcher{}
	fetcher.On("TickerPrice", mock.Anything, "QRLUSDT").Return(decimal.Zero, nil)

	_, err := NewResolver(zap.NewNop(), qrl, fetcher, repo).FromExchange(context.Background(), "QRLUSDT")
	require.Error(t, err)

	_, err = repo.CachedPrice(context.Background(), "QRLUSDT")
	require.ErrorIs(t, err, cache.ErrNotFound)
}
