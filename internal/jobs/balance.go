package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// TaskBalanceSync name of the balance synchronisation job.
const TaskBalanceSync = "01-min-job"

// DefaultBalancePolicy two attempts of at most 10s each.
var DefaultBalancePolicy = Policy{Attempts: 2, Timeout: 10 * time.Second, Backoff: time.Second}

type snapshotFetcher interface {
	Fetch(ctx context.Context) (domain.BalanceSnapshot, error)
}

type balanceCache interface {
	counterStore
	LastBalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
}

// BalanceJob refreshes the cached balance snapshot from the exchange.
type BalanceJob struct {
	snapshots snapshotFetcher
	cache     balanceCache
	policy    Policy
}

func NewBalanceJob(snapshots snapshotFetcher, cache balanceCache, policy Policy) *BalanceJob {
	return &BalanceJob{snapshots: snapshots, cache: cache, policy: policy}
}

func (j *BalanceJob) Name() string { return TaskBalanceSync }

func (j *BalanceJob) RequiresCredentials() bool { return true }

// Run fetches a snapshot with retries. When the exchange stays unreachable the
// last known snapshot is served as degraded.
func (j *BalanceJob) Run(ctx context.Context, run *Run) domain.TaskResult {
	meta := run.Metadata()

	snap, err := withRetry(ctx, run, j.policy, j.snapshots.Fetch)
	if err == nil {
		count(ctx, run, j.cache, CounterBalanceSyncSuccess)
		meta.Source = domain.SourceExchange
		meta.PriceSource = snap.Metadata.PriceSource
		meta.PriceMissing = snap.Metadata.PriceMissing

		status := domain.TaskStatusSuccess
		if snap.Metadata.PriceMissing {
			status = domain.TaskStatusPartial
		}
		return domain.TaskResult{Status: status, Data: snap, Metadata: meta}
	}

	count(ctx, run, j.cache, CounterBalanceSyncFail)
	last, lerr := j.cache.LastBalanceSnapshot(ctx)
	if lerr != nil {
		run.l.Error("balance sync failed, no snapshot to fall back to", zap.Error(err), zap.NamedError("cache_error", lerr))
		return failed(meta, domain.SourceFallback, err)
	}

	meta.Source = domain.SourceFallback
	meta.Error = err.Error()
	meta.PriceSource = last.Metadata.PriceSource
	meta.PriceMissing = last.Metadata.PriceMissing
	fallbackMeta := last.Metadata
	fallbackMeta.Source = domain.SourceFallback

	return domain.TaskResult{
		Status:   domain.TaskStatusDegraded,
		Reason:   "balance sync failed, serving last snapshot",
		Data:     last.WithMetadata(fallbackMeta),
		Metadata: meta,
	}
}
