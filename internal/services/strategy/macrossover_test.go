package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

func series(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestNewMACrossover_Validation(t *testing.T) {
	_, err := NewMACrossover(5, 5)
	assert.Error(t, err)
	_, err = NewMACrossover(0, 5)
	assert.Error(t, err)
	s, err := NewMACrossover(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.LongPeriod())
}

func TestMACrossover_GenerateSignal(t *testing.T) {
	s, err := NewMACrossover(2, 4)
	require.NoError(t, err)

	tests := []struct {
		name    string
		history []decimal.Decimal
		want    domain.Action
	}{
		{name: "rising prices", history: series(4, 3, 2, 1), want: domain.ActionBuy},
		{name: "falling prices", history: series(1, 2, 3, 4), want: domain.ActionSell},
		{name: "flat prices", history: series(2, 2, 2, 2), want: domain.ActionHold},
		{name: "extra history ignored", history: series(4, 3, 2, 1, 100, 100), want: domain.ActionBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.GenerateSignal(decimal.NewFromInt(3), tt.history, decimal.Zero)
			assert.Equal(t, tt.want, res.Signal)
		})
	}
}

func TestMACrossover_InsufficientHistoryHolds(t *testing.T) {
	s, err := NewMACrossover(5, 20)
	require.NoError(t, err)

	histories := [][]decimal.Decimal{
		nil,
		series(100),
		series(100, 1, 100, 1, 100, 1, 100, 1, 100, 1, 100, 1, 100, 1, 100, 1, 100, 1, 100),
		series(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19),
	}

	for _, h := range histories {
		res := s.GenerateSignal(decimal.NewFromInt(50), h, decimal.NewFromInt(1))
		assert.Equal(t, domain.ActionHold, res.Signal)
		assert.Contains(t, res.Reason, "insufficient history")
	}
}

func TestCross(t *testing.T) {
	assert.Equal(t, domain.CrossGolden, Cross(series(3, 2, 1), 1, 3).Cross)
	assert.Equal(t, domain.CrossDeath, Cross(series(1, 2, 3), 1, 3).Cross)
	assert.Equal(t, domain.CrossNone, Cross(series(2, 2, 2), 1, 3).Cross)
	assert.Equal(t, domain.CrossInsufficient, Cross(series(2, 2), 1, 3).Cross)
}
