// Package config loads and validates the orchestration runtime's
// configuration: server bind address, checkpoint store location,
// scheduler bounds, token/provider-call budgets, provider model
// selection, fixture mode, and logging. RuntimeConfig is built once at
// process boot and passed explicitly through every package that needs
// it; nothing here is read from a package-level global.
package config

import "time"

// RuntimeConfig holds the orchestration engine's full configuration.
type RuntimeConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Fixtures  FixturesConfig  `mapstructure:"fixtures"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP/SSE API server.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StoreConfig configures checkpoint durability.
type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SchedulerConfig bounds one run's execution.
type SchedulerConfig struct {
	AgentTimeout            string `mapstructure:"agent_timeout"`
	RunDeadline             string `mapstructure:"run_deadline"`
	ReconciliationRoundCap  int    `mapstructure:"reconciliation_round_cap"`
	MaxOutputTokensPerAgent int    `mapstructure:"max_output_tokens_per_agent"`
}

// BudgetConfig caps a run's resource spend. Zero means disabled.
type BudgetConfig struct {
	MaxTokensPerRun        int `mapstructure:"max_tokens_per_run"`
	MaxProviderCallsPerRun int `mapstructure:"max_provider_calls_per_run"`
}

// ProviderConfig names a model and the environment variable carrying
// its API key; the key's value is never read into RuntimeConfig, only
// its variable name, so config dumps and logs never leak secrets.
type ProviderConfig struct {
	Model     string `mapstructure:"model"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// ProvidersConfig configures the three supported LLM providers.
type ProvidersConfig struct {
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
}

// FixturesConfig switches agents to replaying recorded fixture
// responses instead of calling a live provider.
type FixturesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AgentTimeoutDuration parses AgentTimeout, already validated by
// config.Validator by the time RuntimeConfig reaches this call.
func (s SchedulerConfig) AgentTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.AgentTimeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}

// RunDeadlineDuration parses RunDeadline, already validated by
// config.Validator by the time RuntimeConfig reaches this call.
func (s SchedulerConfig) RunDeadlineDuration() time.Duration {
	d, err := time.ParseDuration(s.RunDeadline)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}
