package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeYaml(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, PlatformMEXC, cfg.Platform)
	assert.Equal(t, "QRL_USDT", cfg.Pair.String())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.Live)
	assert.Equal(t, 5, cfg.MaxDailyTrades)
	assert.Equal(t, 300*time.Second, cfg.MinTradeInterval)
	assert.True(t, cfg.MaxPositionFraction.Equal(decimal.RequireFromString("0.3")))
	assert.True(t, cfg.SellMargin.Equal(decimal.RequireFromString("0.03")))
	assert.False(t, cfg.Credentials.Set())
}

func TestLoad_Yaml(t *testing.T) {
	path := writeYaml(t, `
platform: binance
pair: qrl_usdt
live: true
scheduler: true
max_position_fraction: "0.25"
max_daily_trades: "3"
min_trade_interval: 10m
short_period: "5"
long_period: "20"
sell_margin: "0.05"
jobs:
  price:
    attempts: 4
    timeout: 3s
    schedule: "@every 5m"
`)
	cfg, err := Load(path, envOf(map[string]string{
		"BINANCE_API_KEY":    "key",
		"BINANCE_API_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, PlatformBinance, cfg.Platform)
	assert.Equal(t, "QRLUSDT", cfg.Pair.Symbol())
	assert.True(t, cfg.Live)
	assert.True(t, cfg.Scheduler)
	assert.True(t, cfg.MaxPositionFraction.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 3, cfg.MaxDailyTrades)
	assert.Equal(t, 10*time.Minute, cfg.MinTradeInterval)
	assert.Equal(t, 5, cfg.ShortPeriod)
	assert.Equal(t, 20, cfg.LongPeriod)
	assert.True(t, cfg.SellMargin.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, JobConfig{Attempts: 4, Timeout: 3 * time.Second, Schedule: "@every 5m"}, cfg.Jobs[JobPrice])
	assert.True(t, cfg.Credentials.Set())
}

func TestLoad_YamlErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"platform", "platform: kraken", "incorrect 'platform' param"},
		{"pair", "pair: QRLUSDT", "incorrect 'pair' param"},
		{"fraction range", `max_position_fraction: "1.5"`, "incorrect 'max_position_fraction' param"},
		{"fraction syntax", `threshold_pct: "abc"`, "incorrect 'threshold_pct' param"},
		{"trades", `max_daily_trades: "0"`, "incorrect 'max_daily_trades' param"},
		{"periods", "short_period: \"30\"\nlong_period: \"10\"", "incorrect 'short_period' param"},
		{"layers", "core_position_pct: \"0.9\"\nswing_pct: \"0.2\"", "incorrect 'swing_pct' param"},
		{"notional", `min_notional_usdt: "-1"`, "incorrect 'min_notional_usdt' param"},
		{"unknown job", "jobs:\n  hourly:\n    attempts: 1", "unknown job"},
		{"negative job", "jobs:\n  cost:\n    attempts: -1", "incorrect 'jobs.cost' param"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYaml(t, tt.body), envOf(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Env(t *testing.T) {
	cfg, err := Load("", envOf(map[string]string{
		"MEXC_API_KEY":    "k",
		"MEXC_SECRET_KEY": "s",
		"REDIS_URL":       "redis://localhost:6379/0",
		"PORT":            "9090",
		"TRADING_LIVE":    "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, Credentials{APIKey: "k", APISecret: "s"}, cfg.Credentials)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.Live)

	_, err = Load("", envOf(map[string]string{"PORT": "http"}))
	assert.Error(t, err)
	_, err = Load("", envOf(map[string]string{"TRADING_LIVE": "maybe"}))
	assert.Error(t, err)
}

func TestCredentials_Set(t *testing.T) {
	assert.False(t, Credentials{APIKey: "k"}.Set())
	assert.False(t, Credentials{APISecret: "s"}.Set())
	assert.True(t, Credentials{APIKey: "k", APISecret: "s"}.Set())
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("../config.example.yaml", envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, PlatformMEXC, cfg.Platform)
	assert.True(t, cfg.Scheduler)
	assert.Equal(t, 3, cfg.Jobs[JobPrice].Attempts)
}
