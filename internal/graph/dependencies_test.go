package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/graph"
)

func TestImpactedDecisionsTransitiveClosure(t *testing.T) {
	impacted := graph.ImpactedDecisions("icp")
	assert.ElementsMatch(t, []string{"positioning", "pricing", "channels", "sales_motion"}, impacted)
}

func TestImpactedAgentsIncludesAlwaysRun(t *testing.T) {
	agents := graph.ImpactedAgents("pricing")
	assert.True(t, agents["sales_motion"])
	assert.True(t, agents["graph_builder"])
	assert.True(t, agents["validator"])
	assert.False(t, agents["people_cash"])
	assert.False(t, agents["execution"])
	assert.False(t, agents["channels"])
}

func TestImpactedAgentsForICPOverrideIsExactlyTheDocumentedSet(t *testing.T) {
	agents := graph.ImpactedAgents("icp")
	var got []core.AgentName
	for a, on := range agents {
		if on {
			got = append(got, a)
		}
	}
	assert.ElementsMatch(t, []core.AgentName{
		"positioning", "pricing", "channels", "sales_motion", "graph_builder", "validator",
	}, got)
}

func TestImpactedAgentsEmptyDecisionMeansFullRerun(t *testing.T) {
	agents := graph.ImpactedAgents("")
	for _, a := range graph.Sequence {
		assert.True(t, agents[a], "expected %s to be included in full rerun", a)
	}
}

func TestAgentsForPathsResolvesLongestPrefix(t *testing.T) {
	agents := graph.AgentsForPaths([]string{"/decisions/pricing/metric", "/evidence/pricing_anchors"})
	assert.True(t, agents[core.AgentName("pricing")])
}

func TestDecisionsForPathsExtractsKeys(t *testing.T) {
	decisions := graph.DecisionsForPaths([]string{"/decisions/icp/selected_option_id", "/decisions/pricing/metric"})
	assert.Equal(t, []string{"icp", "pricing"}, decisions)
}

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	order, err := graph.TopologicalSort(
		[]string{"c", "a", "b"},
		map[string][]string{"b": {"a"}, "c": {"b"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	_, err := graph.TopologicalSort(
		[]string{"a", "b"},
		map[string][]string{"a": {"b"}, "b": {"a"}},
	)
	require.Error(t, err)
	var cycleErr *graph.CycleError
	require.ErrorAs(t, err, &cycleErr)
}
