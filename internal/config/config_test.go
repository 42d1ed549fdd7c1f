package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeConfig() Config {
	cfg := Defaults()
	cfg.Exchange.APIKey = "key"
	cfg.Feed.URL = "wss://signals.example/ws"
	return cfg
}

func TestDefaultsWithCredentialsValidate(t *testing.T) {
	cfg := completeConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := completeConfig()
	cfg.LogLevel = "loud"
	cfg.Breaker.MaxDailyLoss = "-5"
	cfg.Coordinator.StopLossPct = "zero"
	cfg.Server.Port = 99999

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "max_daily_loss")
	assert.Contains(t, err.Error(), "stop_loss_pct")
	assert.Contains(t, err.Error(), "port")
}

func TestValidateMinExceedsMax(t *testing.T) {
	cfg := completeConfig()
	cfg.Coordinator.MinPositionSize = "100"
	cfg.Coordinator.MaxPositionSize = "10"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_position_size")
}

func TestValidateArchiveNeedsJournal(t *testing.T) {
	cfg := completeConfig()
	cfg.Postgres = PostgresConfig{}
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[breaker]
max_daily_loss = "250"
cooldown = "45m"

[coordinator]
markets = ["BTC-USD", "ETH-USD"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "250", cfg.Breaker.MaxDailyLoss)
	assert.Equal(t, 45*time.Minute, cfg.Breaker.Cooldown.Duration)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Coordinator.Markets)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Breaker.ConsecutiveLossThreshold)
	assert.Equal(t, "0.02", cfg.Coordinator.RiskBudgetFraction)
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[breaker]\nmax_daily_loss = \"250\"\n"), 0o644))

	t.Setenv("COPYBOT_BREAKER_MAX_DAILY_LOSS", "750")
	t.Setenv("COPYBOT_EXCHANGE_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "750", cfg.Breaker.MaxDailyLoss)
	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
}
