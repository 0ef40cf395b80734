package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "warden-config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(yaml)
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadConfig(t *testing.T) {
	yaml := `
general:
  instance_id: "test-node"
  environment: "development"
  dry_run: true
  log_level: "debug"

discovery:
  queries:
    - "solana"
    - "raydium"
  poll_interval_s: 15

filters:
  min_liquidity_usd: 25000
  min_volume_24h_usd: 10000
  min_age_hours: 2

trading:
  trade_amount_usd: 250
  stop_loss_pct: 15
  take_profit_pct: 40
`
	path := writeConfig(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-node", cfg.General.InstanceID)
	assert.Equal(t, "development", cfg.General.Environment)
	assert.True(t, cfg.General.DryRun)
	assert.Equal(t, []string{"solana", "raydium"}, cfg.Discovery.Queries)
	assert.Equal(t, 15, cfg.Discovery.PollIntervalS)
	assert.Equal(t, 25000.0, cfg.Filters.MinLiquidityUSD)
	assert.Equal(t, 2.0, cfg.Filters.MinAgeHours)
	assert.Equal(t, 250.0, cfg.Trading.TradeAmountUSD)
	assert.Equal(t, 15.0, cfg.Trading.StopLossPct)
	assert.Equal(t, 40.0, cfg.Trading.TakeProfitPct)
}

func TestLoadConfigDefaults(t *testing.T) {
	yaml := `
general:
  dry_run: true
`
	path := writeConfig(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warden-1", cfg.General.InstanceID)
	assert.Equal(t, "solana", cfg.General.Chain)
	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.Equal(t, 30, cfg.Discovery.PollIntervalS)
	assert.Equal(t, 10, cfg.Verification.ProviderTimeoutS)
	assert.Equal(t, 0.5, cfg.Verification.MinRealVolumeRatio)
	assert.Equal(t, 50.0, cfg.Verification.Supply.MaxTopHolderPct)
	assert.Equal(t, 10.0, cfg.Trading.StopLossPct)
	assert.Equal(t, 20.0, cfg.Trading.TakeProfitPct)
	assert.Equal(t, "paper", cfg.Execution.Mode)
	assert.Equal(t, 3, cfg.Execution.MaxRetries)
	assert.Equal(t, "warden.db", cfg.Storage.Path)
	assert.Equal(t, ":8787", cfg.Server.Listen)
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	os.Setenv("TEST_WARDEN_INSTANCE", "env-node")
	defer os.Unsetenv("TEST_WARDEN_INSTANCE")

	yaml := `
general:
  instance_id: "${TEST_WARDEN_INSTANCE}"
`
	path := writeConfig(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-node", cfg.General.InstanceID)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	yaml := `
trading:
  stop_loss_pct: 120
`
	path := writeConfig(t, yaml)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_loss_pct")
}

func TestValidateTelegramModeNeedsToken(t *testing.T) {
	yaml := `
execution:
  mode: telegram
`
	path := writeConfig(t, yaml)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token")
}
