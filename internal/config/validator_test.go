package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *RuntimeConfig {
	cfg, _ := NewLoader().Load()
	return cfg
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	err := ValidateConfig(validConfig())
	assert.NoError(t, err)
}

func TestValidateConfigRejectsBadSchedulerDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.AgentTimeout = "soon"
	cfg.Scheduler.RunDeadline = "later"

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	require := assert.New(t)
	require.ErrorAs(err, &verrs)
	require.True(verrs.HasErrors())
	fields := fieldSet(verrs)
	require.True(fields["scheduler.agent_timeout"])
	require.True(fields["scheduler.run_deadline"])
}

func TestValidateConfigRejectsNegativeBudget(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.MaxTokensPerRun = -1

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.True(t, fieldSet(verrs)["budget.max_tokens_per_run"])
}

func TestValidateConfigRequiresProviderModelAndKeyEnv(t *testing.T) {
	cfg := validConfig()
	cfg.Providers.Anthropic.Model = ""
	cfg.Providers.Anthropic.APIKeyEnv = ""

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	fields := fieldSet(verrs)
	assert.True(t, fields["providers.anthropic.model"])
	assert.True(t, fields["providers.anthropic.api_key_env"])
}

func TestValidateConfigRequiresFixtureDirWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Fixtures.Enabled = true
	cfg.Fixtures.Dir = ""

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.True(t, fieldSet(verrs)["fixtures.dir"])
}

func TestValidateConfigRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.True(t, fieldSet(verrs)["log.level"])
}

func fieldSet(errs ValidationErrors) map[string]bool {
	out := make(map[string]bool, len(errs))
	for _, e := range errs {
		out[e.Field] = true
	}
	return out
}
