// Package pricer resolves the current price of the traded symbol, falling back
// to cached values when the exchange cannot be reached.
package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// ErrPriceUnavailable is returned when neither the exchange nor any cache layer has a price.
var ErrPriceUnavailable = errors.New("price unavailable")

type priceFetcher interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type priceCache interface {
	CachePrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error
	CachedPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	LastKnownPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	LegacyPrice(ctx context.Context) (decimal.Decimal, error)
	SetLegacyPrice(ctx context.Context, price decimal.Decimal) error
}

// Quote price together with the layer that produced it.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Source domain.PriceSource
}

// Resolver walks exchange -> cache -> cache-last -> legacy.
type Resolver struct {
	l       *zap.Logger
	pair    domain.Pair
	fetcher priceFetcher
	cache   priceCache
	now     func() time.Time
}

func NewResolver(l *zap.Logger, pair domain.Pair, fetcher priceFetcher, cache priceCache) *Resolver {
	return &Resolver{l: l, pair: pair, fetcher: fetcher, cache: cache, now: time.Now}
}

// FromExchange fetches a live price and writes it back to the cache layers.
// Write-back failures are logged and do not fail the call.
func (r *Resolver) FromExchange(ctx context.Context, symbol string) (Quote, error) {
	if r.fetcher == nil {
		return Quote{}, errors.New("price fetcher is not configured")
	}
	price, err := r.fetcher.TickerPrice(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	if !price.IsPositive() {
		return Quote{}, errors.Errorf("exchange returned non-positive price %s for %s", price, symbol)
	}
	r.Store(ctx, symbol, price)
	return Quote{Symbol: symbol, Price: price, Source: domain.PriceSourceExchange}, nil
}

// Store writes price to the cache layers.
func (r *Resolver) Store(ctx context.Context, symbol string, price decimal.Decimal) {
	if r.cache == nil {
		return
	}
	if err := r.cache.CachePrice(ctx, symbol, price, r.now().UTC()); err != nil {
		r.l.Warn("failed to cache price", zap.String("symbol", symbol), zap.Error(err))
	}
	if symbol == r.pair.Symbol() {
		if err := r.cache.SetLegacyPrice(ctx, price); err != nil {
			r.l.Warn("failed to write legacy price", zap.Error(err))
		}
	}
}

type cacheLayer struct {
	source domain.PriceSource
	read   func(context.Context) (decimal.Decimal, error)
}

// FromCache returns the first positive cached price. The legacy key is only
// consulted for the traded symbol.
func (r *Resolver) FromCache(ctx context.Context, symbol string) (Quote, error) {
	if r.cache == nil {
		return Quote{}, ErrPriceUnavailable
	}

	layers := []cacheLayer{
		{domain.PriceSourceCache, func(ctx context.Context) (decimal.Decimal, error) { return r.cache.CachedPrice(ctx, symbol) }},
		{domain.PriceSourceCacheLast, func(ctx context.Context) (decimal.Decimal, error) { return r.cache.LastKnownPrice(ctx, symbol) }},
	}
	if symbol == r.pair.Symbol() {
		layers = append(layers, cacheLayer{domain.PriceSourceLegacy, r.cache.LegacyPrice})
	}

	for _, layer := range layers {
		price, err := layer.read(ctx)
		if err != nil {
			r.l.Debug("price cache layer miss",
				zap.String("symbol", symbol),
				zap.String("layer", string(layer.source)),
				zap.Error(err))
			continue
		}
		if price.IsPositive() {
			return Quote{Symbol: symbol, Price: price, Source: layer.source}, nil
		}
	}
	return Quote{}, ErrPriceUnavailable
}

// Resolve tries the exchange once and falls back to the cache chain.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (Quote, error) {
	q, err := r.FromExchange(ctx, symbol)
	if err == nil {
		return q, nil
	}
	r.l.Warn("exchange price unavailable, using cache", zap.String("symbol", symbol), zap.Error(err))
	return r.FromCache(ctx, symbol)
}
