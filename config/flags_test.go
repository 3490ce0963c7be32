package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--config", "bot.yaml", "--pair", "QRL_USDT", "--platform", "Bybit", "--addr", ":9000", "--live"})
	require.NoError(t, err)
	assert.Equal(t, "bot.yaml", f.ConfigPath)
	assert.Equal(t, ".env", f.EnvFile)

	cfg := Default()
	require.NoError(t, f.Apply(&cfg))
	assert.Equal(t, PlatformBybit, cfg.Platform)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.True(t, cfg.Live)

	_, err = ParseFlags([]string{"--unknown"})
	assert.Error(t, err)
}

func TestFlags_LiveOnlyWhenGiven(t *testing.T) {
	f, err := ParseFlags(nil)
	require.NoError(t, err)

	cfg := Default()
	cfg.Live = true
	require.NoError(t, f.Apply(&cfg))
	assert.True(t, cfg.Live)

	f, err = ParseFlags([]string{"--live=false"})
	require.NoError(t, err)
	require.NoError(t, f.Apply(&cfg))
	assert.False(t, cfg.Live)
}

func TestFlags_ApplyErrors(t *testing.T) {
	cfg := Default()
	assert.Error(t, Flags{Pair: "QRL"}.Apply(&cfg))
	assert.Error(t, Flags{Platform: "kraken"}.Apply(&cfg))
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(""))
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QRLBOT_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("QRLBOT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("QRLBOT_TEST_DOTENV"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("QRLBOT_TEST_DOTENV"))
}

func TestGet(t *testing.T) {
	cfg, f, err := Get([]string{"--env", "", "--platform", "binance"}, envOf(map[string]string{
		"BINANCE_API_KEY":    "k",
		"BINANCE_API_SECRET": "s",
	}))
	require.NoError(t, err)
	assert.Empty(t, f.ConfigPath)
	assert.Equal(t, PlatformBinance, cfg.Platform)
	assert.True(t, cfg.Credentials.Set())
}
