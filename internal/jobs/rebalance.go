package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
)

// DefaultRebalancePolicy two attempts of at most 15s each.
var DefaultRebalancePolicy = Policy{Attempts: 2, Timeout: 15 * time.Second, Backoff: time.Second}

type snapshotSource interface {
	Current(ctx context.Context) (domain.BalanceSnapshot, error)
}

type planGenerator interface {
	GeneratePlan(ctx context.Context, snap domain.BalanceSnapshot) domain.RebalancePlan
}

type journalWriter interface {
	Append(kind journal.Kind, symbol string, v any) error
}

// RebalanceJob produces and records a rebalance plan with one planner.
type RebalanceJob struct {
	strategy  string
	snapshots snapshotSource
	planner   planGenerator
	journal   journalWriter
	policy    Policy
}

// NewRebalanceJob creates the job for the named strategy. jw may be nil.
func NewRebalanceJob(strategy string, snapshots snapshotSource, planner planGenerator, jw journalWriter, policy Policy) *RebalanceJob {
	return &RebalanceJob{
		strategy:  strategy,
		snapshots: snapshots,
		planner:   planner,
		journal:   jw,
		policy:    policy,
	}
}

// Name is rebalance/<strategy>.
func (j *RebalanceJob) Name() string { return "rebalance/" + j.strategy }

func (j *RebalanceJob) RequiresCredentials() bool { return true }

func (j *RebalanceJob) Run(ctx context.Context, run *Run) domain.TaskResult {
	meta := run.Metadata()

	snap, err := withRetry(ctx, run, j.policy, j.snapshots.Current)
	if err != nil {
		return failed(meta, domain.SourceFallback, err)
	}

	plan := j.planner.GeneratePlan(ctx, snap)
	if j.journal != nil {
		if err := j.journal.Append(journal.KindPlan, plan.Symbol, plan); err != nil {
			run.l.Warn("failed to journal plan", zap.Error(err))
		}
	}

	meta.Source = snap.Metadata.Source
	meta.PriceSource = snap.Metadata.PriceSource
	meta.PriceMissing = snap.Metadata.PriceMissing
	meta.Extra = map[string]any{"strategy": j.strategy, "action": plan.Action.String()}

	return domain.TaskResult{Status: classifySnapshot(snap), Reason: plan.Reason, Data: plan, Metadata: meta}
}

// classifySnapshot degraded for a fallback snapshot, partial when it has no price.
func classifySnapshot(snap domain.BalanceSnapshot) domain.TaskStatus {
	switch {
	case snap.Metadata.Source == domain.SourceFallback:
		return domain.TaskStatusDegraded
	case snap.Metadata.PriceMissing:
		return domain.TaskStatusPartial
	default:
		return domain.TaskStatusSuccess
	}
}
