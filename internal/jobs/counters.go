package jobs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/metrics"
)

// Counter names persisted in the cache next to their Prometheus twins.
const (
	CounterBalanceSyncSuccess = "balance_sync_success"
	CounterBalanceSyncFail    = "balance_sync_fail"
	CounterPriceMissing       = "price_missing_count"
	CounterPriceChange        = "price_change_count"
	CounterPriceSyncFail      = "price_sync_fail"
)

var promCounters = map[string]prometheus.Counter{
	CounterBalanceSyncSuccess: metrics.BalanceSyncSuccess,
	CounterBalanceSyncFail:    metrics.BalanceSyncFail,
	CounterPriceMissing:       metrics.PriceMissing,
	CounterPriceChange:        metrics.PriceChange,
	CounterPriceSyncFail:      metrics.PriceSyncFail,
}

type counterStore interface {
	IncrCounter(ctx context.Context, name string) (int64, error)
}

// count bumps the Prometheus counter and its persisted copy. Cache failures
// are logged only.
func count(ctx context.Context, run *Run, store counterStore, name string) {
	if c, ok := promCounters[name]; ok {
		c.Inc()
	}
	if store == nil {
		return
	}
	if _, err := store.IncrCounter(ctx, name); err != nil {
		run.l.Debug("counter not persisted", zap.String("counter", name), zap.Error(err))
	}
}
