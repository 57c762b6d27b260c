package core

import "context"

// AgentName identifies one of the static sequence's agents, or a
// synthetic producer like "_intake" or "orchestrator".
type AgentName string

// ExecuteOptions carries the per-call budget and fixture controls
// passed to an agent invocation.
type ExecuteOptions struct {
	TimeoutMillis   int64
	FixtureMode     bool
	FixtureDir      string
	Fingerprint     string
	MaxOutputTokens int
}

// ExecuteResult is the raw outcome of one agent invocation, before
// the merge engine has touched it. The payload is carried as JSON so
// this leaf package has no dependency on the state package.
type ExecuteResult struct {
	OutputJSON []byte
	TokensIn   int
	TokensOut  int
	Retries    int
}

// Agent is a pure function from a state snapshot to a structured
// diff. Implementations never mutate the snapshot they're given. Two
// kinds of implementation exist: provider-backed (a real LLM call)
// and fixture-backed (deterministic, for tests).
type Agent interface {
	Name() AgentName
	Execute(ctx context.Context, stateJSON []byte, opts ExecuteOptions) (ExecuteResult, error)
}

// AgentRegistry maps agent names to their Agent implementation.
type AgentRegistry interface {
	Get(name AgentName) (Agent, bool)
	Names() []AgentName
}
