package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, ".orchestrator/checkpoints.db", cfg.Store.SQLitePath)
	assert.Equal(t, "45s", cfg.Scheduler.AgentTimeout)
	assert.Equal(t, "10m", cfg.Scheduler.RunDeadline)
	assert.Equal(t, 3, cfg.Scheduler.ReconciliationRoundCap)
	assert.Equal(t, 0, cfg.Budget.MaxTokensPerRun)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Providers.Anthropic.Model)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Providers.Anthropic.APIKeyEnv)
	assert.False(t, cfg.Fixtures.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Setenv("ORCH_LOG_LEVEL", "debug")
	t.Setenv("ORCH_BUDGET_MAX_TOKENS_PER_RUN", "50000")
	t.Setenv("ORCH_SERVER_ADDR", ":9090")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50000, cfg.Budget.MaxTokensPerRun)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoaderConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/custom.yaml"
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7070\"\nlog:\n  level: warn\n"), 0o600))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, ".orchestrator/checkpoints.db", cfg.Store.SQLitePath)
}

func TestSchedulerDurationHelpersFallBackOnBadInput(t *testing.T) {
	cfg := SchedulerConfig{AgentTimeout: "not-a-duration", RunDeadline: "also-bad"}
	assert.Greater(t, cfg.AgentTimeoutDuration().Seconds(), 0.0)
	assert.Greater(t, cfg.RunDeadlineDuration().Minutes(), 0.0)
}
