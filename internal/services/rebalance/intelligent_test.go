package rebalance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) PriceHistory(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error) {
	args := m.Called(ctx, symbol, limit)
	if v := args.Get(0); v != nil {
		return v.([]decimal.Decimal), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPositions struct {
	mock.Mock
}

func (m *mockPositions) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	args := m.Called(ctx, symbol)
	if v := args.Get(0); v != nil {
		return v.(*domain.Position), args.Error(1)
	}
	return nil, args.Error(1)
}

// rising is most-recent-first with short MA above long MA.
func rising(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromInt(int64(n - i))
	}
	return out
}

func falling(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromInt(int64(i + 1))
	}
	return out
}

func flat(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromInt(2)
	}
	return out
}

func newIntelligent() *Intelligent {
	base := NewSymmetric(zap.NewNop(), qrlUSDT, Params{TargetRatio: d("0.5"), MinNotionalUSDT: d("0.1"), ThresholdPct: decimal.Zero}, nil)
	params := DefaultIntelligentParams()
	params.ShortPeriod = 2
	params.LongPeriod = 4
	return NewIntelligent(zap.NewNop(), base, params, nil, nil, nil)
}

func TestIntelligent_ComputePlan(t *testing.T) {
	buySnap := makeSnapshot("10", "80", "2")  // symmetric BUY 15
	sellSnap := makeSnapshot("50", "20", "2") // symmetric SELL 20
	holdSnap := makeSnapshot("25", "50", "2") // symmetric HOLD

	tests := []struct {
		name       string
		snap       domain.BalanceSnapshot
		history    []decimal.Decimal
		pos        *domain.Position
		wantAction domain.Action
		wantQty    decimal.Decimal
		wantReason string
	}{
		{
			name:       "buy on golden cross without cost basis",
			snap:       buySnap,
			history:    rising(4),
			wantAction: domain.ActionBuy,
			wantQty:    d("15"),
			wantReason: "QRL below target",
		},
		{
			name:       "buy on golden cross below cost",
			snap:       buySnap,
			history:    rising(4),
			pos:        &domain.Position{TotalQty: d("10"), AverageCost: d("2.5")},
			wantAction: domain.ActionBuy,
			wantQty:    d("15"),
			wantReason: "QRL below target",
		},
		{
			name:       "buy blocked by death cross",
			snap:       buySnap,
			history:    falling(4),
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "MA gate: no golden cross for BUY",
		},
		{
			name:       "buy blocked by both gates",
			snap:       buySnap,
			history:    flat(4),
			pos:        &domain.Position{TotalQty: d("10"), AverageCost: d("1")},
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "MA gate: no golden cross for BUY; Cost gate: price above average cost",
		},
		{
			name:       "buy blocked by short history",
			snap:       buySnap,
			history:    rising(3),
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "MA gate: insufficient price history",
		},
		{
			name:       "sell on death cross above margin limited to tradeable tiers",
			snap:       sellSnap,
			history:    falling(4),
			pos:        &domain.Position{TotalQty: d("50"), AverageCost: d("1")},
			wantAction: domain.ActionSell,
			wantQty:    d("15"),
			wantReason: "QRL above target",
		},
		{
			name:       "sell blocked below margin",
			snap:       sellSnap,
			history:    falling(4),
			pos:        &domain.Position{TotalQty: d("50"), AverageCost: d("1.95")},
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "Cost gate: price below sell target",
		},
		{
			name:       "sell blocked without cost basis",
			snap:       sellSnap,
			history:    falling(4),
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "Cost gate: no cost basis for SELL",
		},
		{
			name:       "sell blocked by golden cross",
			snap:       sellSnap,
			history:    rising(4),
			pos:        &domain.Position{TotalQty: d("50"), AverageCost: d("1")},
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "MA gate: no death cross for SELL",
		},
		{
			name:       "symmetric hold stays hold",
			snap:       holdSnap,
			history:    rising(4),
			wantAction: domain.ActionHold,
			wantQty:    decimal.Zero,
			wantReason: "Within threshold",
		},
	}

	p := newIntelligent()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := p.ComputePlan(tt.snap, tt.history, tt.pos)

			assert.Equal(t, tt.wantAction, plan.Action)
			assert.True(t, plan.Quantity.Equal(tt.wantQty), "quantity %s", plan.Quantity)
			assert.Equal(t, tt.wantReason, plan.Reason)
			assert.Equal(t, domain.StrategyIntelligent, plan.Strategy)
			require.NotNil(t, plan.MA)
			require.NotNil(t, plan.CostBasis)
			require.NotNil(t, plan.Tiers)
		})
	}
}

func TestIntelligent_SellTargetUsesMargin(t *testing.T) {
	p := newIntelligent()
	plan := p.ComputePlan(makeSnapshot("50", "20", "2"), falling(4), &domain.Position{TotalQty: d("50"), AverageCost: d("1.94")})

	// 1.94 * 1.03 = 1.9982 <= 2
	assert.Equal(t, domain.ActionSell, plan.Action)
	assert.True(t, plan.CostBasis.SellTarget.Equal(d("1.9982")))
	assert.True(t, plan.CostBasis.Passed)
	assert.True(t, plan.MA.Passed)
}

func TestIntelligent_GeneratePlanDegradesOnReadErrors(t *testing.T) {
	history := &mockHistory{}
	history.On("PriceHistory", mock.Anything, "QRLUSDT", 25).Return(nil, errors.New("cache down"))
	positions := &mockPositions{}
	positions.On("Position", mock.Anything, "QRLUSDT").Return(nil, errors.New("cache down"))
	rec := &mockRecorder{}
	rec.On("SaveRebalancePlan", mock.Anything, mock.Anything).Return(nil)

	base := NewSymmetric(zap.NewNop(), qrlUSDT, Params{TargetRatio: d("0.5"), MinNotionalUSDT: d("0.1"), ThresholdPct: decimal.Zero}, nil)
	p := NewIntelligent(zap.NewNop(), base, DefaultIntelligentParams(), history, positions, rec)

	plan := p.GeneratePlan(context.Background(), makeSnapshot("10", "80", "2"))

	assert.Equal(t, domain.ActionHold, plan.Action)
	assert.Equal(t, "MA gate: insufficient price history", plan.Reason)
	history.AssertExpectations(t)
	positions.AssertExpectations(t)
	rec.AssertExpectations(t)
}
