package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "ORCH",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance,
// allowing integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envPrefix: "ORCH"}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
//  1. CLI flags (set via viper.BindPFlag)
//  2. Environment variables (ORCH_*)
//  3. Project config (.orchestrator.yaml in current directory)
//  4. User config (~/.config/orchestrator/config.yaml)
//  5. Defaults
func (l *Loader) Load() (*RuntimeConfig, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".orchestrator")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "orchestrator"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg RuntimeConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// WatchConfig watches the config file for changes and calls onChange
// with the re-loaded RuntimeConfig whenever it is rewritten. Errors
// encountered while re-reading or re-unmarshaling are dropped: the
// previous in-memory RuntimeConfig keeps serving until the next valid
// write, matching the fail-open posture a long-running server wants
// from hot config reload.
func (l *Loader) WatchConfig(onChange func(*RuntimeConfig)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		var cfg RuntimeConfig
		if err := l.v.Unmarshal(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("server.addr", ":8080")
	l.v.SetDefault("server.cors_origins", []string{"*"})

	l.v.SetDefault("store.sqlite_path", ".orchestrator/checkpoints.db")

	l.v.SetDefault("scheduler.agent_timeout", "45s")
	l.v.SetDefault("scheduler.run_deadline", "10m")
	l.v.SetDefault("scheduler.reconciliation_round_cap", 3)
	l.v.SetDefault("scheduler.max_output_tokens_per_agent", 4096)

	l.v.SetDefault("budget.max_tokens_per_run", 0)
	l.v.SetDefault("budget.max_provider_calls_per_run", 0)

	l.v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5")
	l.v.SetDefault("providers.anthropic.api_key_env", "ANTHROPIC_API_KEY")
	l.v.SetDefault("providers.openai.model", "gpt-4.1")
	l.v.SetDefault("providers.openai.api_key_env", "OPENAI_API_KEY")
	l.v.SetDefault("providers.gemini.model", "gemini-2.5-flash")
	l.v.SetDefault("providers.gemini.api_key_env", "GEMINI_API_KEY")

	l.v.SetDefault("fixtures.enabled", false)
	l.v.SetDefault("fixtures.dir", "testdata/fixtures")

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
