package jobs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/position"
	"github.com/vadiminshakov/qrlbot/internal/services/pricer"
	"github.com/vadiminshakov/qrlbot/internal/services/snapshot"
)

// TaskCostUpdate name of the cost and valuation job.
const TaskCostUpdate = "15-min-job"

// DefaultCostPolicy a single fetch attempt of at most 30s.
var DefaultCostPolicy = Policy{Attempts: 1, Timeout: 30 * time.Second, Backoff: time.Second}

// Cost job alerts.
const (
	AlertSnapshotUnavailable   = "snapshot-unavailable"
	AlertPriceMissing          = "price-missing"
	AlertPriceMissingThreshold = "price-missing-threshold"
)

// priceMissingThreshold consecutive misses that raise the threshold alert.
const priceMissingThreshold = 3

type costCache interface {
	counterStore
	BalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
	LastBalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
	SaveCosts(ctx context.Context, costs any) error
	Counter(ctx context.Context, name string) (int64, error)
	ResetCounter(ctx context.Context, name string) error
	Position(ctx context.Context, symbol string) (*domain.Position, error)
	SavePosition(ctx context.Context, symbol string, pos domain.Position) error
}

type cachedQuotes interface {
	FromCache(ctx context.Context, symbol string) (pricer.Quote, error)
}

// CostData payload of the cost job, also stored in the cache.
type CostData struct {
	Snapshot    domain.BalanceSnapshot `json:"snapshot"`
	Values      snapshot.Valuation     `json:"values"`
	PriceSource domain.PriceSource     `json:"price_source"`
	Position    *domain.Position       `json:"position,omitempty"`
}

// CostJob values the account from cached state and marks the position to market.
type CostJob struct {
	pair      domain.Pair
	snapshots snapshotFetcher
	quotes    cachedQuotes
	cache     costCache
	sizing    *position.Manager
	builder   *snapshot.Builder
	policy    Policy
	now       func() time.Time
}

func NewCostJob(pair domain.Pair, snapshots snapshotFetcher, quotes cachedQuotes, cache costCache, sizing *position.Manager, policy Policy) *CostJob {
	return &CostJob{
		pair:      pair,
		snapshots: snapshots,
		quotes:    quotes,
		cache:     cache,
		sizing:    sizing,
		builder:   snapshot.NewBuilder(pair),
		policy:    policy,
		now:       time.Now,
	}
}

func (j *CostJob) Name() string { return TaskCostUpdate }

func (j *CostJob) RequiresCredentials() bool { return true }

func (j *CostJob) Run(ctx context.Context, run *Run) domain.TaskResult {
	symbol := j.pair.Symbol()
	meta := run.Metadata()
	var alerts []string

	snap, source, err := j.snapshot(ctx, run)
	if err != nil {
		meta.Alerts = append(alerts, AlertSnapshotUnavailable)
		return failed(meta, "", err)
	}

	priceSource := snap.Metadata.PriceSource
	if _, ok := snap.Price(symbol); !ok {
		quote, qerr := j.quotes.FromCache(ctx, symbol)
		if qerr != nil {
			alerts = append(alerts, AlertPriceMissing)
			count(ctx, run, j.cache, CounterPriceMissing)
			priceSource = domain.PriceSourceMissing
		} else {
			snap = snap.WithPrice(symbol, j.pair.From, quote.Price, quote.Source)
			priceSource = quote.Source
		}
	}

	values := j.builder.Value(snap)
	data := CostData{Snapshot: snap, Values: values, PriceSource: priceSource}
	if !values.PriceMissing {
		data.Position = j.reconcile(ctx, run, values.Price)
		// the threshold counts consecutive misses
		if err := j.cache.ResetCounter(ctx, CounterPriceMissing); err != nil {
			run.l.Debug("counter not reset", zap.String("counter", CounterPriceMissing), zap.Error(err))
		}
	}
	if err := j.cache.SaveCosts(ctx, data); err != nil {
		run.l.Warn("failed to store costs", zap.Error(err))
	}

	if n, err := j.cache.Counter(ctx, CounterPriceMissing); err == nil && n >= priceMissingThreshold {
		alerts = append(alerts, AlertPriceMissingThreshold)
	}

	meta.Source = source
	meta.PriceSource = priceSource
	meta.PriceMissing = values.PriceMissing
	meta.Alerts = alerts

	status := domain.TaskStatusSuccess
	if values.PriceMissing {
		status = domain.TaskStatusPartial
	}
	return domain.TaskResult{Status: status, Data: data, Metadata: meta}
}

// snapshot prefers the fresh cache, then the last snapshot, then one live fetch.
func (j *CostJob) snapshot(ctx context.Context, run *Run) (domain.BalanceSnapshot, string, error) {
	if snap, err := j.cache.BalanceSnapshot(ctx); err == nil {
		return snap, domain.SourceCache, nil
	}
	if snap, err := j.cache.LastBalanceSnapshot(ctx); err == nil {
		return snap, domain.SourceCache, nil
	}
	snap, err := withRetry(ctx, run, j.policy, j.snapshots.Fetch)
	if err != nil {
		return domain.BalanceSnapshot{}, "", err
	}
	return snap, domain.SourceExchange, nil
}

// reconcile refreshes the unrealized PnL of the stored position.
func (j *CostJob) reconcile(ctx context.Context, run *Run, price decimal.Decimal) *domain.Position {
	symbol := j.pair.Symbol()
	stored, err := j.cache.Position(ctx, symbol)
	if err != nil {
		run.l.Warn("failed to load position", zap.Error(err))
		return nil
	}
	if stored == nil {
		return nil
	}

	pos := j.sizing.MarkToMarket(*stored, price, j.now().UTC())
	if err := j.cache.SavePosition(ctx, symbol, pos); err != nil {
		run.l.Warn("failed to save reconciled position", zap.Error(err))
	}
	return &pos
}
