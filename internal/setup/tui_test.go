package setup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/qrlbot/config"
)

func TestWrite_RoundTripsThroughLoad(t *testing.T) {
	a := defaultAnswers()
	a.Platform = config.PlatformBybit
	a.Live = true
	a.MaxPositionFrac = "0.2"
	a.MinTradeInterval = "10m"

	path := filepath.Join(t.TempDir(), config.GeneratedFile)
	require.NoError(t, Write(path, a))

	cfg, err := config.Load(path, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, config.PlatformBybit, cfg.Platform)
	assert.Equal(t, "QRL_USDT", cfg.Pair.String())
	assert.True(t, cfg.Live)
	assert.True(t, cfg.Scheduler)
	assert.True(t, cfg.MaxPositionFraction.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, 10*time.Minute, cfg.MinTradeInterval)
}

func TestWrite_BadInterval(t *testing.T) {
	a := defaultAnswers()
	a.MinTradeInterval = "soon"
	assert.Error(t, Write(filepath.Join(t.TempDir(), "x.yaml"), a))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateFraction("0.5"))
	assert.Error(t, validateFraction("1.5"))
	assert.Error(t, validateFraction("x"))
	assert.NoError(t, validatePositiveInt("7"))
	assert.Error(t, validatePositiveInt("0"))
}
