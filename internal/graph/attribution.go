package graph

import (
	"sort"
	"strings"

	"github.com/gtmcore/orchestrator/internal/core"
)

// pathPrefixToAgent is a static, longest-prefix-wins table mapping a
// contradiction's JSON Pointer paths back to the agent responsible for
// that slice of state, so the reconciliation pass knows who to rerun.
var pathPrefixToAgent = []struct {
	prefix string
	agent  core.AgentName
}{
	{"/decisions/icp", "icp"},
	{"/decisions/positioning", "positioning"},
	{"/decisions/pricing", "pricing"},
	{"/decisions/channels", "channels"},
	{"/decisions/sales_motion", "sales_motion"},
	{"/pillars/product_tech", "tech_feasibility"},
	{"/pillars/people_and_cash", "people_cash"},
	{"/execution", "execution"},
	{"/evidence/competitors", "competitive_teardown"},
	{"/evidence/pricing_anchors", "pricing"},
	{"/evidence", "evidence_collector"},
	{"/graph", "graph_builder"},
}

// AgentsForPaths resolves one contradiction's Paths to the set of
// agents responsible for remediating it, by longest matching prefix.
func AgentsForPaths(paths []string) map[core.AgentName]bool {
	agents := map[core.AgentName]bool{}
	for _, p := range paths {
		best := ""
		var bestAgent core.AgentName
		for _, entry := range pathPrefixToAgent {
			if strings.HasPrefix(p, entry.prefix) && len(entry.prefix) > len(best) {
				best = entry.prefix
				bestAgent = entry.agent
			}
		}
		if bestAgent != "" {
			agents[bestAgent] = true
		}
	}
	return agents
}

// DecisionsForPaths extracts the decision-slot keys a set of
// contradiction paths touch, for feeding into ImpactedAgentsForMany.
func DecisionsForPaths(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		if !strings.HasPrefix(p, "/decisions/") {
			continue
		}
		rest := strings.TrimPrefix(p, "/decisions/")
		key := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			key = rest[:idx]
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
