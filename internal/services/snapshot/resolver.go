package snapshot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/pricer"
)

// ErrSnapshotUnavailable is returned when neither the exchange nor the cache has balances.
var ErrSnapshotUnavailable = errors.New("balance snapshot unavailable")

type accountFetcher interface {
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)
}

type priceResolver interface {
	Resolve(ctx context.Context, symbol string) (pricer.Quote, error)
}

type snapshotCache interface {
	SaveBalanceSnapshot(ctx context.Context, snap domain.BalanceSnapshot) error
	BalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
	LastBalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
}

// Resolver serves balance snapshots cache-first: fresh cache, then a live
// fetch, then the last known snapshot.
type Resolver struct {
	l       *zap.Logger
	pair    domain.Pair
	builder *Builder
	account accountFetcher
	prices  priceResolver
	cache   snapshotCache
	now     func() time.Time
}

func NewResolver(l *zap.Logger, pair domain.Pair, account accountFetcher, prices priceResolver, cache snapshotCache) *Resolver {
	return &Resolver{
		l:       l,
		pair:    pair,
		builder: NewBuilder(pair),
		account: account,
		prices:  prices,
		cache:   cache,
		now:     time.Now,
	}
}

// Fetch builds a snapshot from a live account call and the resolved price and
// stores it. A missing price does not fail the fetch.
func (r *Resolver) Fetch(ctx context.Context) (domain.BalanceSnapshot, error) {
	info, err := r.account.AccountInfo(ctx)
	if err != nil {
		return domain.BalanceSnapshot{}, errors.Wrap(err, "fetch account")
	}

	in := Input{Account: info, Source: domain.SourceExchange, Timestamp: r.now().UTC()}
	quote, err := r.prices.Resolve(ctx, r.pair.Symbol())
	if err != nil {
		r.l.Warn("snapshot built without price", zap.String("symbol", r.pair.Symbol()), zap.Error(err))
	} else {
		in.Price = &quote.Price
		in.PriceSource = quote.Source
	}

	snap := r.builder.Build(in)
	if err := r.cache.SaveBalanceSnapshot(ctx, snap); err != nil {
		r.l.Warn("failed to cache balance snapshot", zap.Error(err))
	}
	return snap, nil
}

// Current returns the freshest snapshot available.
func (r *Resolver) Current(ctx context.Context) (domain.BalanceSnapshot, error) {
	if snap, err := r.cache.BalanceSnapshot(ctx); err == nil {
		return snap.WithMetadata(withSource(snap.Metadata, domain.SourceCache)), nil
	}

	snap, fetchErr := r.Fetch(ctx)
	if fetchErr == nil {
		return snap, nil
	}
	r.l.Warn("live balance fetch failed, using last snapshot", zap.Error(fetchErr))

	last, err := r.cache.LastBalanceSnapshot(ctx)
	if err != nil {
		return domain.BalanceSnapshot{}, errors.Wrap(ErrSnapshotUnavailable, fetchErr.Error())
	}
	return last.WithMetadata(withSource(last.Metadata, domain.SourceFallback)), nil
}

// FreeBalance returns the free amount of asset from the current snapshot.
func (r *Resolver) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	snap, err := r.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Asset(asset).Free, nil
}

// TotalBalance returns free plus locked amount of asset.
func (r *Resolver) TotalBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	snap, err := r.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Asset(asset).Total, nil
}

func withSource(m domain.SnapshotMetadata, source string) domain.SnapshotMetadata {
	m.Source = source
	return m
}
