// Package graph holds the static agent sequence and the
// decision-dependency graph the scheduler uses to target reruns
// during the reconciliation pass.
package graph

import "github.com/gtmcore/orchestrator/internal/core"

// Sequence is the fixed topological order agents run in during the
// initial sweep.
var Sequence = []core.AgentName{
	"evidence_collector",
	"competitive_teardown",
	"icp",
	"positioning",
	"pricing",
	"channels",
	"sales_motion",
	"product_strategy",
	"tech_feasibility",
	"people_cash",
	"execution",
	"graph_builder",
	"validator",
}

// DependencyGraph maps a decision slot to the decision slots that read
// from it: changing "icp" invalidates whatever "positioning", "pricing",
// "channels", and "sales_motion" already decided; "positioning" in turn
// invalidates "pricing" and "channels"; both "pricing" and "channels"
// invalidate "sales_motion". Neither "people_cash" nor "execution"
// reads from a decision slot, so an override never reruns them.
var DependencyGraph = map[string][]string{
	"icp":         {"positioning", "pricing", "channels", "sales_motion"},
	"positioning": {"pricing", "channels"},
	"pricing":     {"sales_motion"},
	"channels":    {"sales_motion"},
}

// DecisionToAgents maps a decision slot to the agents whose output
// directly depends on it.
var DecisionToAgents = map[string][]core.AgentName{
	"icp":         {"positioning", "pricing", "channels", "sales_motion"},
	"positioning": {"pricing", "channels"},
	"pricing":     {"sales_motion"},
	"channels":    {"sales_motion"},
}

// AlwaysRunAgents rerun on every reconciliation round regardless of
// which decisions changed: the graph must stay in sync and the
// validator must re-score every round.
var AlwaysRunAgents = map[core.AgentName]bool{
	"graph_builder": true,
	"validator":     true,
}

// ImpactedDecisions returns the transitive closure of decision slots
// that depend on changedDecision, via DependencyGraph.
func ImpactedDecisions(changedDecision string) []string {
	if changedDecision == "" {
		return nil
	}
	seen := map[string]bool{}
	var result []string
	frontier := []string{changedDecision}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, dep := range DependencyGraph[current] {
			if !seen[dep] {
				seen[dep] = true
				result = append(result, dep)
				frontier = append(frontier, dep)
			}
		}
	}
	return result
}

// ImpactedAgents returns the set of agents that must rerun given one
// changed decision slot, or every agent in Sequence if changedDecision
// is empty (a full rerun). AlwaysRunAgents are always included.
func ImpactedAgents(changedDecision string) map[core.AgentName]bool {
	impacted := map[core.AgentName]bool{}
	if changedDecision == "" {
		for _, a := range Sequence {
			impacted[a] = true
		}
		return impacted
	}
	for _, a := range DecisionToAgents[changedDecision] {
		impacted[a] = true
	}
	for _, dep := range ImpactedDecisions(changedDecision) {
		for _, a := range DecisionToAgents[dep] {
			impacted[a] = true
		}
	}
	for a := range AlwaysRunAgents {
		impacted[a] = true
	}
	return impacted
}

// ImpactedAgentsForMany unions ImpactedAgents across several changed
// decisions, the shape the reconciliation pass actually needs when a
// round's contradictions touch more than one decision slot.
func ImpactedAgentsForMany(changedDecisions []string) map[core.AgentName]bool {
	impacted := map[core.AgentName]bool{}
	for _, d := range changedDecisions {
		for a := range ImpactedAgents(d) {
			impacted[a] = true
		}
	}
	if len(changedDecisions) == 0 {
		for a := range ImpactedAgents("") {
			impacted[a] = true
		}
	}
	return impacted
}
