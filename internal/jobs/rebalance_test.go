package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/rebalance"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
)

type fakeSnapshots struct {
	snap  domain.BalanceSnapshot
	err   error
	calls int
}

func (f *fakeSnapshots) Current(context.Context) (domain.BalanceSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

type journalCall struct {
	kind   journal.Kind
	symbol string
}

type fakeJournal struct {
	calls []journalCall
}

func (f *fakeJournal) Append(kind journal.Kind, symbol string, _ any) error {
	f.calls = append(f.calls, journalCall{kind: kind, symbol: symbol})
	return nil
}

func withSource(snap domain.BalanceSnapshot, source string) domain.BalanceSnapshot {
	m := snap.Metadata
	m.Source = source
	return snap.WithMetadata(m)
}

func TestRebalanceJob(t *testing.T) {
	tests := []struct {
		name       string
		snap       domain.BalanceSnapshot
		wantStatus domain.TaskStatus
		wantAction domain.Action
	}{
		{
			name:       "live snapshot",
			snap:       makeSnapshot("1000", "100", priceOf("0.5")),
			wantStatus: domain.TaskStatusSuccess,
			wantAction: domain.ActionSell,
		},
		{
			name:       "fallback snapshot",
			snap:       withSource(makeSnapshot("1000", "100", priceOf("0.5")), domain.SourceFallback),
			wantStatus: domain.TaskStatusDegraded,
			wantAction: domain.ActionSell,
		},
		{
			name:       "snapshot without price",
			snap:       makeSnapshot("1000", "100", nil),
			wantStatus: domain.TaskStatusPartial,
			wantAction: domain.ActionHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			jw := &fakeJournal{}
			planner := rebalance.NewSymmetric(zap.NewNop(), qrlUSDT, rebalance.DefaultParams(), repo)
			job := NewRebalanceJob(domain.StrategySymmetric, &fakeSnapshots{snap: tt.snap}, planner, jw, fast)

			res := job.Run(context.Background(), newRun(job.Name()))

			assert.Equal(t, tt.wantStatus, res.Status)
			plan, ok := res.Data.(domain.RebalancePlan)
			require.True(t, ok)
			assert.Equal(t, tt.wantAction, plan.Action)
			assert.Equal(t, domain.StrategySymmetric, res.Metadata.Extra["strategy"])

			stored, err := repo.LastRebalancePlan(context.Background(), "QRLUSDT", domain.StrategySymmetric)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, stored.Action)

			require.Len(t, jw.calls, 1)
			assert.Equal(t, journal.KindPlan, jw.calls[0].kind)
			assert.Equal(t, "QRLUSDT", jw.calls[0].symbol)
		})
	}
}

func TestRebalanceJob_Name(t *testing.T) {
	job := NewRebalanceJob(domain.StrategyIntelligent, &fakeSnapshots{}, nil, nil, fast)
	assert.Equal(t, "rebalance/intelligent", job.Name())
}

func TestRebalanceJob_NoSnapshot(t *testing.T) {
	src := &fakeSnapshots{err: errors.New("balance snapshot unavailable")}
	planner := rebalance.NewSymmetric(zap.NewNop(), qrlUSDT, rebalance.DefaultParams(), nil)
	job := NewRebalanceJob(domain.StrategySymmetric, src, planner, nil, fast)

	res := job.Run(context.Background(), newRun(job.Name()))
	assert.Equal(t, domain.TaskStatusError, res.Status)
	assert.Equal(t, 2, src.calls)
}
