package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gtmcore/orchestrator/internal/agent"
	"github.com/gtmcore/orchestrator/internal/api"
	"github.com/gtmcore/orchestrator/internal/checkpoint"
	"github.com/gtmcore/orchestrator/internal/config"
	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/events"
	"github.com/gtmcore/orchestrator/internal/graph"
	"github.com/gtmcore/orchestrator/internal/logging"
	"github.com/gtmcore/orchestrator/internal/scheduler"
	"github.com/gtmcore/orchestrator/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration API server",
	Long: `Start the orchestrator's HTTP + SSE API server.

Boots the agent registry (live providers, or recorded fixtures with
--fixtures), opens the checkpoint store, and serves the scenario/run
lifecycle routes until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return newExitError(2, fmt.Errorf("loading config: %w", err))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return newExitError(2, fmt.Errorf("invalid config: %w", err))
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	store, err := checkpoint.Open(cfg.Store.SQLitePath)
	if err != nil {
		var de *core.DomainError
		if errors.As(err, &de) && de.Code == "SCHEMA_MISMATCH" {
			return newExitError(4, err)
		}
		return newExitError(3, fmt.Errorf("opening checkpoint store: %w", err))
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("closing checkpoint store", slog.String("error", cerr.Error()))
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return newExitError(2, fmt.Errorf("building agent registry: %w", err))
	}

	bus := events.New()
	schedulerCfg := scheduler.Config{
		AgentTimeout:            cfg.Scheduler.AgentTimeoutDuration(),
		RunDeadline:             cfg.Scheduler.RunDeadlineDuration(),
		MaxReconciliationRounds: cfg.Scheduler.ReconciliationRoundCap,
		MaxOutputTokensPerAgent: cfg.Scheduler.MaxOutputTokensPerAgent,
		TokenBudget:             cfg.Budget.MaxTokensPerRun,
	}
	pipeline := scheduler.NewPipeline(registry, store, bus, schedulerCfg, logger.Logger)

	server := api.NewServer(pipeline, bus, api.WithLogger(logger.Logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return newExitError(1, fmt.Errorf("server: %w", err))
	}
	logger.Info("server stopped")
	return nil
}

// buildRegistry wires one core.Agent per entry in graph.Sequence. In
// fixture mode every agent replays recorded responses from
// cfg.Fixtures.Dir. Otherwise each agent is backed by a live provider,
// round-robined across the three configured providers (evidence and
// graph-building duties lean on Gemini's longer context, the rest
// split between Anthropic and OpenAI), and wrapped in a rate-limited,
// retrying decorator.
func buildRegistry(cfg *config.RuntimeConfig) (core.AgentRegistry, error) {
	if cfg.Fixtures.Enabled {
		agents := make([]core.Agent, 0, len(graph.Sequence))
		for _, name := range graph.Sequence {
			a, err := agent.NewFixtureAgent(name, cfg.Fixtures.Dir, 32)
			if err != nil {
				return nil, fmt.Errorf("fixture agent %q: %w", name, err)
			}
			agents = append(agents, a)
		}
		agents = append(agents, agent.NewIntakeAgent())
		return agent.NewRegistry(agents...), nil
	}

	anthropicKey := os.Getenv(cfg.Providers.Anthropic.APIKeyEnv)
	openaiKey := os.Getenv(cfg.Providers.OpenAI.APIKeyEnv)
	geminiKey := os.Getenv(cfg.Providers.Gemini.APIKeyEnv)

	limiter := service.NewRateLimiter(service.DefaultRateLimiterConfig())
	retry := service.NewRetryPolicy()

	agents := make([]core.Agent, 0, len(graph.Sequence))
	for i, name := range graph.Sequence {
		var inner core.Agent
		switch {
		case name == "evidence_collector" || name == "graph_builder":
			if geminiKey == "" {
				return nil, fmt.Errorf("%s requires %s", name, cfg.Providers.Gemini.APIKeyEnv)
			}
			gem, err := agent.NewGeminiAgent(context.Background(), name, geminiKey, cfg.Providers.Gemini.Model)
			if err != nil {
				return nil, fmt.Errorf("gemini agent %q: %w", name, err)
			}
			inner = gem
		case i%2 == 0:
			if anthropicKey == "" {
				return nil, fmt.Errorf("%s requires %s", name, cfg.Providers.Anthropic.APIKeyEnv)
			}
			inner = agent.NewAnthropicAgent(name, anthropicKey, cfg.Providers.Anthropic.Model)
		default:
			if openaiKey == "" {
				return nil, fmt.Errorf("%s requires %s", name, cfg.Providers.OpenAI.APIKeyEnv)
			}
			inner = agent.NewOpenAIAgent(name, openaiKey, cfg.Providers.OpenAI.Model)
		}

		agents = append(agents, agent.NewResilientAgent(inner, limiter, retry))
	}

	agents = append(agents, agent.NewIntakeAgent())
	return agent.NewRegistry(agents...), nil
}
