package scheduler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/agent"
	"github.com/gtmcore/orchestrator/internal/checkpoint"
	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/events"
	"github.com/gtmcore/orchestrator/internal/graph"
	"github.com/gtmcore/orchestrator/internal/scheduler"
	"github.com/gtmcore/orchestrator/internal/state"
)

// scriptedAgent returns a fixed AgentOutput JSON payload every call and
// counts its invocations, standing in for a provider-backed agent in
// tests that must stay deterministic without any Go toolchain run.
type scriptedAgent struct {
	name    core.AgentName
	output  string
	calls   int
	failN   int // fail this many times before succeeding
	failAll bool
}

func (s *scriptedAgent) Name() core.AgentName { return s.name }

func (s *scriptedAgent) Execute(context.Context, []byte, core.ExecuteOptions) (core.ExecuteResult, error) {
	s.calls++
	if s.failAll || s.calls <= s.failN {
		return core.ExecuteResult{}, core.ErrInput("SCRIPTED_FAILURE", "scripted failure")
	}
	return core.ExecuteResult{OutputJSON: []byte(s.output), TokensIn: 10, TokensOut: 20}, nil
}

func emptyOutputAgent(name core.AgentName) *scriptedAgent {
	return &scriptedAgent{name: name, output: `{}`}
}

func icpAgent() *scriptedAgent {
	return &scriptedAgent{name: "icp", output: `{
		"proposals": [{"decision_key": "icp", "options": [{"id": "opt_1", "label": "SMB ops teams"}], "recommended_option_id": "opt_1"}]
	}`}
}

func newTestPipeline(t *testing.T, agents ...core.Agent) (*scheduler.Pipeline, *events.Bus) {
	t.Helper()
	store, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := agent.NewRegistry(agents...)
	bus := events.New()
	cfg := scheduler.DefaultConfig()
	cfg.AgentTimeout = 2 * time.Second
	cfg.RunDeadline = 5 * time.Second
	return scheduler.NewPipeline(registry, store, bus, cfg, nil), bus
}

func allAgentsSucceeding() []core.Agent {
	agents := make([]core.Agent, 0, len(graph.Sequence))
	for _, name := range graph.Sequence {
		if name == "icp" {
			agents = append(agents, icpAgent())
			continue
		}
		agents = append(agents, emptyOutputAgent(name))
	}
	return agents
}

func waitForStatus(t *testing.T, p *scheduler.Pipeline, runID string, want string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var status string
	for time.Now().Before(deadline) {
		var err error
		status, _, err = p.RunStatus(context.Background(), runID)
		require.NoError(t, err)
		if status == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	return status
}

func TestStartRunCompletesCleanSweep(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant", Category: state.CategoryB2BSaaS}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)

	status := waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)
	assert.Equal(t, scheduler.StatusCompleted, status)
}

func TestStartRunUnknownScenarioFails(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	_, err := p.StartRun(context.Background(), "does_not_exist", "")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatInput))
}

func TestStartRunWithIncompleteIntakeReturnsRequiredInputs(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	seeded := p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})
	seeded.Inputs.IntakeAnswers = []state.IntakeAnswer{
		{QuestionID: agent.RequiredIntakeFields[0], Answer: "VP of Sales"},
	}

	_, err := p.StartRun(context.Background(), "scn_1", "")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatInput))

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	missing, ok := domErr.Details["required_inputs"].([]string)
	require.True(t, ok)
	assert.Equal(t, agent.RequiredIntakeFields[1:], missing)
}

func TestAgentFailureFailsTheRun(t *testing.T) {
	agents := allAgentsSucceeding()
	for i, a := range agents {
		if a.Name() == "pricing" {
			agents[i] = &scriptedAgent{name: "pricing", failAll: true}
		}
	}
	p, bus := newTestPipeline(t, agents...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)

	status := waitForStatus(t, p, runID, scheduler.StatusFailed, 2*time.Second)
	assert.Equal(t, scheduler.StatusFailed, status)

	history := bus.History(runID)
	sawFailure := false
	for _, ev := range history {
		if ev.Kind == events.KindAgentFailed {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)
}

func TestAutoSelectsRecommendedOptionAfterICP(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)
	waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)

	_, contradictions, err := p.ExportReadiness(context.Background(), "scn_1")
	require.NoError(t, err)
	for _, c := range contradictions {
		assert.NotEqual(t, "V-ICP-01", c.RuleID, "icp's recommended option was not auto-selected")
	}
}

func TestSelectDecisionTriggersScopedReconciliationRun(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)
	waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)

	err = p.SelectDecision(context.Background(), "scn_1", "icp", "opt_1", true, "strong existing relationship")
	require.NoError(t, err)
}

func TestSelectDecisionRejectsUnknownKey(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	err := p.SelectDecision(context.Background(), "scn_1", "not_a_decision", "opt_1", false, "")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatInput))
}

func TestCompleteBlocksWhenExecutionPillarEmpty(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	err := p.Complete(context.Background(), "scn_1")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidatorBlock))
}

func TestExportReadinessReflectsBlockingContradictions(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	ready, blocking, err := p.ExportReadiness(context.Background(), "scn_1")
	require.NoError(t, err)
	assert.False(t, ready)
	assert.NotEmpty(t, blocking)
}

func TestCancelRunStopsTheSweep(t *testing.T) {
	agents := make([]core.Agent, 0, len(graph.Sequence))
	for _, name := range graph.Sequence {
		agents = append(agents, &slowAgent{name: name, delay: 200 * time.Millisecond})
	}
	p, _ := newTestPipeline(t, agents...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.CancelRun(context.Background(), runID))

	status := waitForStatus(t, p, runID, scheduler.StatusFailed, 2*time.Second)
	assert.Equal(t, scheduler.StatusFailed, status)
}

type slowAgent struct {
	name  core.AgentName
	delay time.Duration
}

func (s *slowAgent) Name() core.AgentName { return s.name }

func (s *slowAgent) Execute(ctx context.Context, _ []byte, _ core.ExecuteOptions) (core.ExecuteResult, error) {
	select {
	case <-time.After(s.delay):
		return core.ExecuteResult{OutputJSON: []byte(`{}`)}, nil
	case <-ctx.Done():
		return core.ExecuteResult{}, core.ErrCancelled("cancelled mid-call")
	}
}

func TestRunStatusUnknownRunReturnsNotFound(t *testing.T) {
	p, _ := newTestPipeline(t, allAgentsSucceeding()...)
	_, _, err := p.RunStatus(context.Background(), "run_does_not_exist")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatInput))
}

// countingAgent is a scriptedAgent variant that records its own call
// count by pointer and can be slowed down just enough to be caught
// mid-flight by a cancellation, so resume behavior can be asserted
// against "this agent ran exactly once".
type countingAgent struct {
	name   core.AgentName
	output string
	delay  time.Duration
	calls  *int
}

func (a *countingAgent) Name() core.AgentName { return a.name }

func (a *countingAgent) Execute(ctx context.Context, _ []byte, _ core.ExecuteOptions) (core.ExecuteResult, error) {
	*a.calls++
	out := a.output
	if out == "" {
		out = "{}"
	}
	if a.delay == 0 {
		return core.ExecuteResult{OutputJSON: []byte(out)}, nil
	}
	select {
	case <-time.After(a.delay):
		return core.ExecuteResult{OutputJSON: []byte(out)}, nil
	case <-ctx.Done():
		return core.ExecuteResult{}, core.ErrCancelled("cancelled mid-call")
	}
}

func TestResumeRunContinuesFromFirstNonCompletedAgent(t *testing.T) {
	counts := map[core.AgentName]*int{}
	agents := make([]core.Agent, 0, len(graph.Sequence))
	var channelsAgent *countingAgent
	for _, name := range graph.Sequence {
		n := 0
		counts[name] = &n
		a := &countingAgent{name: name, calls: &n}
		if name == "icp" {
			a.output = `{"proposals": [{"decision_key": "icp", "options": [{"id": "opt_1", "label": "SMB ops teams"}], "recommended_option_id": "opt_1"}]}`
		}
		if name == "channels" {
			a.delay = 500 * time.Millisecond
			channelsAgent = a
		}
		agents = append(agents, a)
	}

	p, bus := newTestPipeline(t, agents...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)

	// Let the fast agents up through pricing complete, then cut the run
	// while channels is still in flight.
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, p.CancelRun(context.Background(), runID))
	waitForStatus(t, p, runID, scheduler.StatusFailed, 2*time.Second)

	require.Equal(t, 1, *counts["pricing"])
	require.Equal(t, 1, *counts["channels"])

	channelsAgent.delay = 0
	require.NoError(t, p.ResumeRun(context.Background(), runID))

	status := waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)
	assert.Equal(t, scheduler.StatusCompleted, status)

	assert.Equal(t, 1, *counts["evidence_collector"])
	assert.Equal(t, 1, *counts["pricing"], "resume must not re-execute an already-completed agent")
	assert.Equal(t, 2, *counts["channels"], "resume re-attempts the agent that was in flight when cancelled")

	history := bus.History(runID)
	var resumedAt int = -1
	for i, ev := range history {
		if ev.Kind == events.KindRunResumed {
			resumedAt = i
			break
		}
	}
	require.GreaterOrEqual(t, resumedAt, 0, "run_resumed was never published")
	var nextAgentStarted *events.Event
	for i := resumedAt + 1; i < len(history); i++ {
		if history[i].Kind == events.KindAgentStarted {
			nextAgentStarted = &history[i]
			break
		}
	}
	require.NotNil(t, nextAgentStarted)
	assert.Equal(t, "channels", nextAgentStarted.Payload["agent"])
}

func TestRunPublishesNodeCreatedForGraphBuilderOutput(t *testing.T) {
	agents := allAgentsSucceeding()
	for i, a := range agents {
		if a.Name() == "graph_builder" {
			agents[i] = &scriptedAgent{name: "graph_builder", output: `{
				"node_updates": [{"node_id": "market.icp.summary", "action": "create", "payload": {
					"title": "ICP summary", "pillar": "customer", "type": "decision", "content": "SMB ops teams", "status": "draft"
				}}]
			}`}
		}
	}
	p, bus := newTestPipeline(t, agents...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)
	waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)

	var sawNodeCreated bool
	for _, ev := range bus.History(runID) {
		if ev.Kind == events.KindNodeCreated && ev.Payload["node_id"] == "market.icp.summary" {
			sawNodeCreated = true
		}
	}
	assert.True(t, sawNodeCreated)
}

func TestRunPublishesValidatorWarningOnSourcelessEvidenceDowngrade(t *testing.T) {
	agents := allAgentsSucceeding()
	for i, a := range agents {
		if a.Name() == "evidence_collector" {
			agents[i] = &scriptedAgent{name: "evidence_collector", output: `{
				"patches": [{"op": "replace", "path": "/decisions/pricing/price_to_test", "value": 49,
					"meta": {"source_type": "evidence"}}]
			}`}
		}
	}
	p, bus := newTestPipeline(t, agents...)
	p.Seed("proj_1", "scn_1", state.Idea{Name: "AI call assistant"}, state.Constraints{TeamSize: 3})

	runID, err := p.StartRun(context.Background(), "scn_1", "")
	require.NoError(t, err)
	waitForStatus(t, p, runID, scheduler.StatusCompleted, 2*time.Second)

	var sawWarning bool
	for _, ev := range bus.History(runID) {
		if ev.Kind == events.KindValidatorWarning && ev.Payload["rule_id"] == "evidence_without_sources" {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestFullSequenceHasAnAgentForEveryName(t *testing.T) {
	agents := allAgentsSucceeding()
	seen := make(map[core.AgentName]bool, len(agents))
	for _, a := range agents {
		seen[a.Name()] = true
	}
	for _, name := range graph.Sequence {
		assert.True(t, seen[name], fmt.Sprintf("missing scripted agent for %q", name))
	}
}
