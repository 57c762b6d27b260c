package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any validation errors were collected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a RuntimeConfig.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *RuntimeConfig) error {
	v.validateServer(&cfg.Server)
	v.validateStore(&cfg.Store)
	v.validateScheduler(&cfg.Scheduler)
	v.validateBudget(&cfg.Budget)
	v.validateProviders(&cfg.Providers)
	v.validateFixtures(&cfg.Fixtures)
	v.validateLog(&cfg.Log)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Addr == "" {
		v.addError("server.addr", cfg.Addr, "bind address required")
	}
	if len(cfg.CORSOrigins) == 0 {
		v.addError("server.cors_origins", cfg.CORSOrigins, "at least one origin required")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if cfg.SQLitePath == "" {
		v.addError("store.sqlite_path", cfg.SQLitePath, "path required")
	}
}

func (v *Validator) validateScheduler(cfg *SchedulerConfig) {
	if _, err := time.ParseDuration(cfg.AgentTimeout); err != nil {
		v.addError("scheduler.agent_timeout", cfg.AgentTimeout, "invalid duration format")
	}
	if _, err := time.ParseDuration(cfg.RunDeadline); err != nil {
		v.addError("scheduler.run_deadline", cfg.RunDeadline, "invalid duration format")
	}
	if cfg.ReconciliationRoundCap < 0 || cfg.ReconciliationRoundCap > 20 {
		v.addError("scheduler.reconciliation_round_cap", cfg.ReconciliationRoundCap, "must be between 0 and 20")
	}
	if cfg.MaxOutputTokensPerAgent <= 0 {
		v.addError("scheduler.max_output_tokens_per_agent", cfg.MaxOutputTokensPerAgent, "must be positive")
	}
}

func (v *Validator) validateBudget(cfg *BudgetConfig) {
	if cfg.MaxTokensPerRun < 0 {
		v.addError("budget.max_tokens_per_run", cfg.MaxTokensPerRun, "must be non-negative")
	}
	if cfg.MaxProviderCallsPerRun < 0 {
		v.addError("budget.max_provider_calls_per_run", cfg.MaxProviderCallsPerRun, "must be non-negative")
	}
}

func (v *Validator) validateProviders(cfg *ProvidersConfig) {
	v.validateProvider("providers.anthropic", &cfg.Anthropic)
	v.validateProvider("providers.openai", &cfg.OpenAI)
	v.validateProvider("providers.gemini", &cfg.Gemini)
}

func (v *Validator) validateProvider(prefix string, cfg *ProviderConfig) {
	if cfg.Model == "" {
		v.addError(prefix+".model", cfg.Model, "model name required")
	}
	if cfg.APIKeyEnv == "" {
		v.addError(prefix+".api_key_env", cfg.APIKeyEnv, "api key env var name required")
	}
}

func (v *Validator) validateFixtures(cfg *FixturesConfig) {
	if cfg.Enabled && cfg.Dir == "" {
		v.addError("fixtures.dir", cfg.Dir, "directory required when fixtures are enabled")
	}
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"auto": true, "text": true, "json": true}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

// ValidateConfig is a convenience function that creates a validator and
// validates cfg.
func ValidateConfig(cfg *RuntimeConfig) error {
	v := NewValidator()
	return v.Validate(cfg)
}
