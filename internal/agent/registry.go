package agent

import (
	"sort"

	"github.com/gtmcore/orchestrator/internal/core"
)

// Registry is a static map-backed core.AgentRegistry.
type Registry struct {
	agents map[core.AgentName]core.Agent
}

// NewRegistry builds a Registry from the given agents, keyed by their
// own Name().
func NewRegistry(agents ...core.Agent) *Registry {
	r := &Registry{agents: make(map[core.AgentName]core.Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.Name()] = a
	}
	return r
}

// Get implements core.AgentRegistry.
func (r *Registry) Get(name core.AgentName) (core.Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Names implements core.AgentRegistry, returning names in sorted order
// so callers get deterministic iteration.
func (r *Registry) Names() []core.AgentName {
	names := make([]core.AgentName, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

var _ core.AgentRegistry = (*Registry)(nil)
