package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/services/snapshot"
	"github.com/vadiminshakov/qrlbot/internal/storage/cache"
	"github.com/vadiminshakov/qrlbot/pkg/retrier"
)

var (
	qrlUSDT = domain.Pair{From: "QRL", To: "USDT"}
	fixed   = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fast    = Policy{Attempts: 2, Timeout: time.Second}
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context) (domain.BalanceSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.BalanceSnapshot), args.Error(1)
}

func newRun(task string) *Run {
	return &Run{Task: task, RequestID: "req", Started: fixed, l: zap.NewNop()}
}

func newRepo() *cache.Repository {
	return cache.NewRepository(cache.NewMemoryStore(nil))
}

func makeSnapshot(qrl, usdt string, price *decimal.Decimal) domain.BalanceSnapshot {
	return snapshot.NewBuilder(qrlUSDT).Build(snapshot.Input{
		Account: domain.AccountInfo{Balances: []domain.RawBalance{
			{Asset: "QRL", Free: qrl, Locked: "0"},
			{Asset: "USDT", Free: usdt, Locked: "0"},
		}},
		Price:       price,
		PriceSource: domain.PriceSourceExchange,
		Source:      domain.SourceExchange,
		Timestamp:   fixed,
	})
}

func priceOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func counter(t *testing.T, repo *cache.Repository, name string) int64 {
	t.Helper()
	n, err := repo.Counter(context.Background(), name)
	require.NoError(t, err)
	return n
}

func TestBalanceJob(t *testing.T) {
	tests := []struct {
		name        string
		fetch       []any
		seedLast    bool
		wantStatus  domain.TaskStatus
		wantSource  string
		wantCalls   int
		wantSuccess int64
		wantFail    int64
	}{
		{
			name:        "synced",
			fetch:       []any{makeSnapshot("100", "50", priceOf("0.5")), nil},
			wantStatus:  domain.TaskStatusSuccess,
			wantSource:  domain.SourceExchange,
			wantCalls:   1,
			wantSuccess: 1,
		},
		{
			name:        "synced without price",
			fetch:       []any{makeSnapshot("100", "50", nil), nil},
			wantStatus:  domain.TaskStatusPartial,
			wantSource:  domain.SourceExchange,
			wantCalls:   1,
			wantSuccess: 1,
		},
		{
			name:       "exchange down with last snapshot",
			fetch:      []any{domain.BalanceSnapshot{}, errors.New("timeout")},
			seedLast:   true,
			wantStatus: domain.TaskStatusDegraded,
			wantSource: domain.SourceFallback,
			wantCalls:  2,
			wantFail:   1,
		},
		{
			name:       "exchange down without fallback",
			fetch:      []any{domain.BalanceSnapshot{}, errors.New("timeout")},
			wantStatus: domain.TaskStatusError,
			wantSource: domain.SourceFallback,
			wantCalls:  2,
			wantFail:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			if tt.seedLast {
				require.NoError(t, repo.SaveBalanceSnapshot(context.Background(), makeSnapshot("80", "20", priceOf("0.4"))))
			}
			f := &mockFetcher{}
			f.On("Fetch", mock.Anything).Return(tt.fetch...)

			res := NewBalanceJob(f, repo, fast).Run(context.Background(), newRun(TaskBalanceSync))

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantSource, res.Metadata.Source)
			assert.Equal(t, TaskBalanceSync, res.Metadata.Task)
			f.AssertNumberOfCalls(t, "Fetch", tt.wantCalls)
			assert.Equal(t, tt.wantSuccess, counter(t, repo, CounterBalanceSyncSuccess))
			assert.Equal(t, tt.wantFail, counter(t, repo, CounterBalanceSyncFail))
		})
	}
}

func TestBalanceJob_FallbackSnapshotIsTagged(t *testing.T) {
	repo := newRepo()
	require.NoError(t, repo.SaveBalanceSnapshot(context.Background(), makeSnapshot("80", "20", priceOf("0.4"))))
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything).Return(domain.BalanceSnapshot{}, errors.New("connection refused"))

	res := NewBalanceJob(f, repo, Policy{Attempts: 1}).Run(context.Background(), newRun(TaskBalanceSync))
	require.Equal(t, domain.TaskStatusDegraded, res.Status)
	assert.Equal(t, "connection refused", res.Metadata.Error)

	snap, ok := res.Data.(domain.BalanceSnapshot)
	require.True(t, ok)
	assert.Equal(t, domain.SourceFallback, snap.Metadata.Source)
	assert.True(t, snap.Asset("QRL").Total.Equal(decimal.NewFromInt(80)))
}

type fetchFunc func(ctx context.Context) (domain.BalanceSnapshot, error)

func (f fetchFunc) Fetch(ctx context.Context) (domain.BalanceSnapshot, error) {
	return f(ctx)
}

func TestBalanceJob_AttemptTimeoutFallsBack(t *testing.T) {
	repo := newRepo()
	require.NoError(t, repo.SaveBalanceSnapshot(context.Background(), makeSnapshot("80", "20", priceOf("0.4"))))

	var calls atomic.Int32
	hang := fetchFunc(func(ctx context.Context) (domain.BalanceSnapshot, error) {
		calls.Add(1)
		<-ctx.Done()
		return domain.BalanceSnapshot{}, ctx.Err()
	})
	policy := Policy{Attempts: 2, Timeout: 20 * time.Millisecond}

	res := NewBalanceJob(hang, repo, policy).Run(context.Background(), newRun(TaskBalanceSync))

	assert.Equal(t, domain.TaskStatusDegraded, res.Status)
	assert.Equal(t, domain.SourceFallback, res.Metadata.Source)
	assert.Contains(t, res.Metadata.Error, retrier.ErrAttemptTimeout.Error())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1), counter(t, repo, CounterBalanceSyncFail))

	snap, ok := res.Data.(domain.BalanceSnapshot)
	require.True(t, ok)
	assert.True(t, snap.Asset("QRL").Total.Equal(decimal.NewFromInt(80)))
}
