// Package scheduler drives one scenario's agents through the
// orchestration engine's two-pass pipeline: an initial sweep over the
// static agent sequence, a bounded reconciliation pass triggered by
// validator contradictions, and the partial rerun a decision override
// triggers. It is the concrete internal/api.Runtime implementation.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gtmcore/orchestrator/internal/agent"
	"github.com/gtmcore/orchestrator/internal/checkpoint"
	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/events"
	"github.com/gtmcore/orchestrator/internal/graph"
	"github.com/gtmcore/orchestrator/internal/merge"
	"github.com/gtmcore/orchestrator/internal/state"
	"github.com/gtmcore/orchestrator/internal/validator"
)

// Run lifecycle statuses, reported by RunStatus and tracked internally.
const (
	StatusRunning   = "running"
	StatusBlocked   = "blocked"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Config bounds one run's resource usage. Defaults mirror the
// reference runtime's per-agent timeout, per-run deadline, and
// reconciliation round cap.
type Config struct {
	AgentTimeout            time.Duration
	RunDeadline             time.Duration
	MaxReconciliationRounds int
	MaxOutputTokensPerAgent int
	TokenBudget             int // 0 disables the budget check
}

// DefaultConfig returns the spec's default bounds: a 45s per-agent
// timeout, a 10 minute per-run deadline, and up to 3 reconciliation
// rounds before a run gives up and reports run_blocked.
func DefaultConfig() Config {
	return Config{
		AgentTimeout:            45 * time.Second,
		RunDeadline:             10 * time.Minute,
		MaxReconciliationRounds: 3,
		MaxOutputTokensPerAgent: 4096,
	}
}

type scenarioRecord struct {
	mu    sync.Mutex
	state *state.CanonicalState
}

type runRecord struct {
	mu              sync.Mutex
	scenarioID      string
	status          string
	checkpointIndex int64
	cancel          context.CancelFunc
}

// Pipeline is the stateful scheduler: one instance per process, shared
// across every scenario and run it drives.
type Pipeline struct {
	registry    core.AgentRegistry
	checkpoints *checkpoint.Store
	bus         *events.Bus
	cfg         Config
	logger      *slog.Logger

	mu        sync.Mutex
	scenarios map[string]*scenarioRecord
	runs      map[string]*runRecord
}

// NewPipeline creates a pipeline backed by registry for agent lookup,
// store for checkpoint durability, and bus for event publication.
func NewPipeline(registry core.AgentRegistry, store *checkpoint.Store, bus *events.Bus, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:    registry,
		checkpoints: store,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
		scenarios:   make(map[string]*scenarioRecord),
		runs:        make(map[string]*runRecord),
	}
}

// Seed registers a brand-new scenario with its idea and constraints,
// building the zero-value CanonicalState the first run sweeps over.
// Scenario intake (turning a founder's raw idea into Idea/Constraints)
// happens upstream of this package; Seed is the handoff point.
// Seed constructs a scenario's initial state directly, bypassing the
// conversational intake flow entirely; callers that exercise the chat
// surface populate Inputs.IntakeAnswers themselves before the first
// StartRun. Seed still stamps every required field with a placeholder
// answer so a scenario built this way is immediately runnable.
func (p *Pipeline) Seed(projectID, scenarioID string, idea state.Idea, constraints state.Constraints) *state.CanonicalState {
	s := state.NewDefaultState(projectID, scenarioID, idea, constraints)
	for _, f := range agent.RequiredIntakeFields {
		s.Inputs.IntakeAnswers = append(s.Inputs.IntakeAnswers, state.IntakeAnswer{
			QuestionID: f,
			Question:   agent.IntakeFieldPrompts[f],
			Answer:     "seeded",
		})
	}
	p.mu.Lock()
	p.scenarios[scenarioID] = &scenarioRecord{state: s}
	p.mu.Unlock()
	return s
}

func (p *Pipeline) scenario(scenarioID string) (*scenarioRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.scenarios[scenarioID]
	if !ok {
		return nil, core.ErrNotFound("scenario", scenarioID)
	}
	return rec, nil
}

// StartRun implements api.Runtime. changedDecision empty means a full
// initial sweep (or reconciliation over the whole sequence); a
// non-empty decision key scopes the run to the agents
// graph.ImpactedAgents says that decision affects.
func (p *Pipeline) StartRun(ctx context.Context, scenarioID, changedDecision string) (string, error) {
	scenario, err := p.scenario(scenarioID)
	if err != nil {
		return "", err
	}

	scenario.mu.Lock()
	answers := scenario.state.Inputs.IntakeAnswers
	scenario.mu.Unlock()
	if missing := missingIntakeFields(answers); len(missing) > 0 {
		return "", core.ErrInput("INTAKE_INCOMPLETE",
			"scenario intake is incomplete; run cannot start yet").
			WithDetail("required_inputs", missing)
	}

	runID := state.NewID("run")
	runCtx, cancel := context.WithTimeout(context.Background(), p.cfg.RunDeadline)

	rec := &runRecord{scenarioID: scenarioID, status: StatusRunning, cancel: cancel}
	p.mu.Lock()
	p.runs[runID] = rec
	p.mu.Unlock()

	scenario.mu.Lock()
	scenario.state.Meta.RunID = runID
	scenario.mu.Unlock()

	p.bus.Publish(events.RunStarted(runID, scenarioID))

	go p.execute(runCtx, runID, scenarioID, changedDecision, 0)

	return runID, nil
}

// ResumeRun implements api.Runtime: it restores the latest checkpoint
// and replays every recorded event to late subscribers by virtue of
// events.Bus.Subscribe's own replay-from-history behavior, then
// continues the run from wherever the sweep left off.
func (p *Pipeline) ResumeRun(ctx context.Context, runID string) error {
	p.mu.Lock()
	rec, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return core.ErrNotFound("run", runID)
	}

	idx, snapshot, _, err := p.checkpoints.Latest(ctx, runID)
	if err != nil {
		return err
	}

	scenario, err := p.scenario(rec.scenarioID)
	if err != nil {
		return err
	}
	scenario.mu.Lock()
	scenario.state = snapshot
	scenario.mu.Unlock()

	rec.mu.Lock()
	rec.status = StatusRunning
	rec.checkpointIndex = idx
	rec.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.Background(), p.cfg.RunDeadline)
	rec.mu.Lock()
	rec.cancel = cancel
	rec.mu.Unlock()

	startIndex := resumeStartIndex(snapshot)
	p.bus.Publish(events.RunResumed(runID, idx))

	go p.execute(runCtx, runID, rec.scenarioID, "", startIndex)

	return nil
}

// missingIntakeFields returns the required intake fields in
// agent.RequiredIntakeFields not yet covered by answers, in order, or
// nil once intake is complete.
func missingIntakeFields(answers []state.IntakeAnswer) []string {
	collected := map[string]bool{}
	for _, a := range answers {
		collected[a.QuestionID] = true
	}
	var missing []string
	for _, f := range agent.RequiredIntakeFields {
		if !collected[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// resumeStartIndex finds the sequence position of the first agent that
// has no completed initial-sweep (round 0) timing recorded yet, so a
// resumed run continues instead of re-executing every agent already
// checkpointed.
func resumeStartIndex(s *state.CanonicalState) int {
	done := map[core.AgentName]bool{}
	for _, t := range s.Telemetry.AgentTimings {
		if t.Round == 0 {
			done[core.AgentName(t.Agent)] = true
		}
	}
	for i, name := range graph.Sequence {
		if !done[name] {
			return i
		}
	}
	return len(graph.Sequence)
}

// RunStatus implements api.Runtime.
func (p *Pipeline) RunStatus(ctx context.Context, runID string) (string, int64, error) {
	p.mu.Lock()
	rec, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return "", 0, core.ErrNotFound("run", runID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.status, rec.checkpointIndex, nil
}

// CancelRun stops runID at its next checkpoint fence: in-flight
// provider calls are abandoned and the run reports failed with cause
// "cancelled". Mirrors the spec's "delete the run's work claim"
// cancellation path without requiring a separate claim record, since
// this single-process pipeline already holds the run's only cancel
// handle.
func (p *Pipeline) CancelRun(ctx context.Context, runID string) error {
	p.mu.Lock()
	rec, ok := p.runs[runID]
	p.mu.Unlock()
	if !ok {
		return core.ErrNotFound("run", runID)
	}
	rec.mu.Lock()
	cancel := rec.cancel
	rec.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// SelectDecision implements api.Runtime: it writes the user's choice
// directly (only the orchestrator may set selected_option_id) and, if
// the value actually changed, kicks off a reconciliation run scoped to
// the decisions it impacts.
func (p *Pipeline) SelectDecision(ctx context.Context, scenarioID, key string, selectedOptionID string, isCustom bool, justification string) error {
	scenario, err := p.scenario(scenarioID)
	if err != nil {
		return err
	}

	scenario.mu.Lock()
	d, ok := decisionPtr(scenario.state, key)
	if !ok {
		scenario.mu.Unlock()
		return core.ErrInput("UNKNOWN_DECISION", "unknown decision key: "+key)
	}
	changed := d.SelectedOptionID != selectedOptionID
	d.SelectedOptionID = selectedOptionID
	d.Override = state.Override{IsCustom: isCustom, Justification: justification}
	scenario.state.Meta.UpdatedBy = "user"
	scenario.state.Meta.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	scenario.mu.Unlock()

	if !changed {
		return nil
	}

	_, err = p.StartRun(ctx, scenarioID, key)
	return err
}

// Complete implements api.Runtime: it runs the mark-complete gate plus
// the advisory pass and rejects completion while blocking
// contradictions remain.
func (p *Pipeline) Complete(ctx context.Context, scenarioID string) error {
	scenario, err := p.scenario(scenarioID)
	if err != nil {
		return err
	}
	scenario.mu.Lock()
	defer scenario.mu.Unlock()

	result := validator.ValidateForCompletion(scenario.state)
	if result.Blocking {
		return core.ErrValidatorBlock("scenario cannot be marked complete: blocking contradictions remain").
			WithDetail("contradictions", result.Contradictions)
	}
	scenario.state.Execution.ChosenTrack = pickChosenTrack(scenario.state.Execution.ChosenTrack)
	return nil
}

// ExportReadiness implements api.Runtime.
func (p *Pipeline) ExportReadiness(ctx context.Context, scenarioID string) (bool, []state.Contradiction, error) {
	scenario, err := p.scenario(scenarioID)
	if err != nil {
		return false, nil, err
	}
	scenario.mu.Lock()
	defer scenario.mu.Unlock()

	result := validator.ValidateForExport(scenario.state)
	return !result.Blocking, result.Contradictions, nil
}

func pickChosenTrack(existing string) string {
	if existing == "" || existing == "unset" {
		return "unset"
	}
	return existing
}

// execute runs the initial sweep (or partial rerun, if changedDecision
// is set) followed by the bounded reconciliation pass, checkpointing
// after every agent and updating the run's terminal status. startIndex
// skips the first startIndex agents of a full sweep's scope, letting a
// resumed run pick up from the first non-completed agent instead of
// re-running everything from the top.
func (p *Pipeline) execute(ctx context.Context, runID, scenarioID, changedDecision string, startIndex int) {
	defer func() {
		p.mu.Lock()
		rec := p.runs[runID]
		p.mu.Unlock()
		if rec != nil {
			rec.mu.Lock()
			if rec.cancel != nil {
				rec.cancel()
			}
			rec.mu.Unlock()
		}
	}()

	scenario, err := p.scenario(scenarioID)
	if err != nil {
		p.fail(ctx, runID, "internal", err.Error())
		return
	}

	scope := scopeFor(changedDecision)
	if startIndex > 0 {
		if startIndex >= len(scope) {
			scope = nil
		} else {
			scope = scope[startIndex:]
		}
	}

	scenario.mu.Lock()
	s := scenario.state
	scenario.mu.Unlock()

	s, ok, err := p.runRound(ctx, runID, s, scope, 0)
	if err != nil {
		p.fail(ctx, runID, causeFor(err), err.Error())
		return
	}
	if !ok {
		return // cancelled mid-round; status already set by runRound
	}
	p.persist(scenario, s)

	// Reconciliation only runs on a fresh sweep. A decision-override
	// rerun is already scoped to its impacted agents; fanning it out
	// through the full reconciliation loop as well would let a single
	// override cascade well beyond that scope.
	if changedDecision == "" {
		p.reconcile(ctx, runID, scenario, s)
		return
	}
	p.finalize(ctx, runID, s, 0)
}

// finalize runs the closing validator pass shared by a partial rerun
// and the end of the reconciliation loop: block on remaining blocking
// contradictions, otherwise report the run complete.
func (p *Pipeline) finalize(ctx context.Context, runID string, s *state.CanonicalState, rounds int) {
	result := validator.Run(s, validator.Gates{})
	if result.Blocking {
		p.block(ctx, runID, ruleIDsOf(result.Contradictions))
		return
	}
	p.complete(ctx, runID, rounds)
}

// reconcile runs the bounded reconciliation loop: evaluate the
// fourteen-rule table, and if blocking contradictions exist, rerun the
// agents responsible for the paths they name, up to
// cfg.MaxReconciliationRounds. Two consecutive rounds naming the same
// rule IDs means the contradictions have stabilized; the run reports
// run_blocked instead of spinning further.
func (p *Pipeline) reconcile(ctx context.Context, runID string, scenario *scenarioRecord, s *state.CanonicalState) {
	var previousRuleIDs []string

	for round := 1; round <= p.cfg.MaxReconciliationRounds; round++ {
		result := validator.Run(s, validator.Gates{})
		if !result.Blocking {
			p.complete(ctx, runID, round-1)
			return
		}

		ruleIDs := ruleIDsOf(result.Contradictions)
		if sameRuleIDs(ruleIDs, previousRuleIDs) {
			p.block(ctx, runID, ruleIDs)
			return
		}
		previousRuleIDs = ruleIDs

		var paths []string
		for _, c := range result.Contradictions {
			paths = append(paths, c.Paths...)
		}
		impacted := graph.AgentsForPaths(paths)
		for a := range graph.AlwaysRunAgents {
			impacted[a] = true
		}
		scope := orderedScope(impacted)

		var ok bool
		var err error
		s, ok, err = p.runRound(ctx, runID, s, scope, round)
		if err != nil {
			p.fail(ctx, runID, causeFor(err), err.Error())
			return
		}
		if !ok {
			return
		}
		p.persist(scenario, s)
	}

	p.finalize(ctx, runID, s, p.cfg.MaxReconciliationRounds)
}

// runRound executes scope in sequence order against s, merging each
// agent's output, auto-selecting recommended decision options, and
// checkpointing after every step. ok is false (with no error) only
// when ctx was cancelled between agents.
func (p *Pipeline) runRound(ctx context.Context, runID string, s *state.CanonicalState, scope []core.AgentName, round int) (*state.CanonicalState, bool, error) {
	for _, name := range scope {
		select {
		case <-ctx.Done():
			p.cancelled(ctx, runID)
			return s, false, nil
		default:
		}

		agent, found := p.registry.Get(name)
		if !found {
			p.bus.Publish(events.AgentSkipped(runID, string(name), "no agent registered"))
			continue
		}

		p.bus.Publish(events.AgentStarted(runID, string(name), round))

		stateJSON, err := s.ToJSON()
		if err != nil {
			return s, false, core.ErrInternal("STATE_MARSHAL_FAILED", "marshaling state for agent call").WithCause(err)
		}

		agentCtx, cancel := context.WithTimeout(ctx, p.cfg.AgentTimeout)
		start := time.Now()
		result, err := agent.Execute(agentCtx, stateJSON, core.ExecuteOptions{
			TimeoutMillis:   p.cfg.AgentTimeout.Milliseconds(),
			MaxOutputTokens: p.cfg.MaxOutputTokensPerAgent,
		})
		duration := time.Since(start)
		cancel()

		if err != nil {
			p.bus.Publish(events.AgentFailed(runID, string(name), err.Error(), core.IsRetryable(err)))
			return s, false, err
		}

		var out state.AgentOutput
		if err := json.Unmarshal(result.OutputJSON, &out); err != nil {
			wrapped := core.ErrMerge("INVALID_AGENT_OUTPUT", "agent output is not valid JSON").WithCause(err)
			p.bus.Publish(events.AgentFailed(runID, string(name), wrapped.Error(), false))
			return s, false, wrapped
		}
		out.Agent = string(name)
		out.RunID = runID
		out.ProducedAt = time.Now().UTC().Format(time.RFC3339Nano)

		merged, mergeResult, err := merge.Apply(s, []state.AgentOutput{out})
		if err != nil {
			wrapped := core.ErrMerge("MERGE_FAILED", "merging agent output").WithCause(err)
			p.bus.Publish(events.AgentFailed(runID, string(name), wrapped.Error(), false))
			return s, false, wrapped
		}
		s = merged
		autoSelectRecommended(s, name)

		for _, w := range mergeResult.Warnings {
			p.bus.Publish(events.ValidatorWarning(runID, w.Code, w.Message, []string{w.Path}))
		}
		for _, nodeID := range mergeResult.NodesCreated {
			p.bus.Publish(events.NodeCreated(runID, nodeID))
		}
		for _, nodeID := range mergeResult.NodesUpdated {
			p.bus.Publish(events.NodeUpdated(runID, nodeID))
		}
		p.bus.Publish(events.AgentProgress(runID, string(name),
			fmt.Sprintf("applied %d patch(es), %d proposal(s)", len(out.Patches), len(out.Proposals))))

		s.Telemetry.AgentTimings = append(s.Telemetry.AgentTimings, state.AgentTiming{
			Agent: string(name), StartedAt: start.UTC().Format(time.RFC3339Nano),
			DurationMS: duration.Milliseconds(), Round: round,
		})
		s.Telemetry.TokenSpend.ByAgent = append(s.Telemetry.TokenSpend.ByAgent, state.TokenSpendByAgent{
			Agent: string(name), TokensIn: result.TokensIn, TokensOut: result.TokensOut,
		})
		s.Telemetry.TokenSpend.Total += result.TokensIn + result.TokensOut

		if p.cfg.TokenBudget > 0 && s.Telemetry.TokenSpend.Total > p.cfg.TokenBudget {
			return s, false, core.ErrBudget("budget", "run exceeded its token budget")
		}

		idx, err := p.checkpoints.Append(ctx, runID, s, 0)
		if err != nil {
			return s, false, err
		}
		p.bus.Publish(events.StateCheckpointed(runID, idx))
		p.setCheckpointIndex(runID, idx)
		p.bus.Publish(events.AgentCompleted(runID, string(name), duration.Milliseconds(), result.TokensIn, result.TokensOut))
	}
	return s, true, nil
}

func (p *Pipeline) persist(scenario *scenarioRecord, s *state.CanonicalState) {
	scenario.mu.Lock()
	scenario.state = s
	scenario.mu.Unlock()
}

func (p *Pipeline) setCheckpointIndex(runID string, idx int64) {
	p.mu.Lock()
	rec := p.runs[runID]
	p.mu.Unlock()
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.checkpointIndex = idx
	rec.mu.Unlock()
}

func (p *Pipeline) setStatus(runID, status string) {
	p.mu.Lock()
	rec := p.runs[runID]
	p.mu.Unlock()
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.status = status
	rec.mu.Unlock()
}

func (p *Pipeline) complete(ctx context.Context, runID string, rounds int) {
	p.setStatus(runID, StatusCompleted)
	p.bus.Publish(events.RunCompleted(runID, rounds))
	p.bus.CloseRun(runID)
}

func (p *Pipeline) block(ctx context.Context, runID string, ruleIDs []string) {
	p.setStatus(runID, StatusBlocked)
	p.bus.Publish(events.RunBlocked(runID, ruleIDs))
}

func (p *Pipeline) fail(ctx context.Context, runID, cause, message string) {
	p.setStatus(runID, StatusFailed)
	p.bus.Publish(events.RunFailed(runID, cause, message))
	p.bus.CloseRun(runID)
}

func (p *Pipeline) cancelled(ctx context.Context, runID string) {
	p.setStatus(runID, StatusFailed)
	p.bus.Publish(events.RunFailed(runID, "cancelled", "run cancelled"))
	p.bus.CloseRun(runID)
}

func causeFor(err error) string {
	switch core.GetCategory(err) {
	case core.ErrCatBudget:
		return "budget"
	case core.ErrCatCancelled:
		return "cancelled"
	case core.ErrCatProvider:
		return "agent_failure"
	case core.ErrCatMerge:
		return "agent_failure"
	default:
		return "internal"
	}
}

// scopeFor returns the ordered agent set a run should execute:
// everything in graph.Sequence for an initial sweep, or the
// decision-impacted subset (still in sequence order) for a partial
// rerun triggered by a decision change.
func scopeFor(changedDecision string) []core.AgentName {
	if changedDecision == "" {
		return append([]core.AgentName{}, graph.Sequence...)
	}
	impacted := graph.ImpactedAgents(changedDecision)
	return orderedScope(impacted)
}

// orderedScope renders an impacted-agent set back into graph.Sequence
// order, so reruns never violate the topological ordering.
func orderedScope(impacted map[core.AgentName]bool) []core.AgentName {
	var scope []core.AgentName
	for _, name := range graph.Sequence {
		if impacted[name] {
			scope = append(scope, name)
		}
	}
	return scope
}

func ruleIDsOf(cs []state.Contradiction) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.RuleID
	}
	return out
}

func sameRuleIDs(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	seen := map[string]bool{}
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

// decisionPtr resolves a decision key to the embedded state.Decision
// the orchestrator is allowed to write selected_option_id/override on.
func decisionPtr(s *state.CanonicalState, key string) (*state.Decision, bool) {
	switch key {
	case "icp":
		return &s.Decisions.ICP.Decision, true
	case "positioning":
		return &s.Decisions.Positioning.Decision, true
	case "pricing":
		return &s.Decisions.Pricing.Decision, true
	case "channels":
		return &s.Decisions.Channels.Decision, true
	case "sales_motion":
		return &s.Decisions.SalesMotion.Decision, true
	default:
		return nil, false
	}
}

// autoSelectRecommended promotes a decision-producing agent's
// recommended_option_id to selected_option_id unless the user already
// placed a custom override on that decision.
func autoSelectRecommended(s *state.CanonicalState, agentName core.AgentName) {
	key, ok := decisionKeyFor(agentName)
	if !ok {
		return
	}
	d, _ := decisionPtr(s, key)
	if d.Override.IsCustom || d.RecommendedOptionID == "" {
		return
	}
	d.SelectedOptionID = d.RecommendedOptionID
}

func decisionKeyFor(agentName core.AgentName) (string, bool) {
	switch agentName {
	case "icp", "positioning", "pricing", "channels", "sales_motion":
		return string(agentName), true
	default:
		return "", false
	}
}
