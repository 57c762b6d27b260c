package state_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/state"
)

func newIdea() state.Idea {
	return state.Idea{
		Name:         "AI call assistant for B2B sales teams",
		OneLiner:     "Never miss a follow-up again.",
		Problem:      "Sales reps forget to follow up with warm leads.",
		TargetRegion: "us",
		Category:     state.CategoryB2BSaaS,
	}
}

func newConstraints() state.Constraints {
	return state.Constraints{TeamSize: 3, TimelineWeeks: 8, BudgetUSDMonthly: 5000, ComplianceLevel: state.ComplianceNone}
}

func TestNewDefaultStateShape(t *testing.T) {
	s := state.NewDefaultState("proj_1", "scn_1", newIdea(), newConstraints())

	assert.Equal(t, "unset", s.Meta.RunID)
	assert.Equal(t, state.SchemaVersion, s.Meta.SchemaVersion)
	assert.Equal(t, state.MotionUnset, s.Decisions.SalesMotion.Motion)
	assert.Equal(t, "unset", s.Execution.ChosenTrack)
	assert.Len(t, s.Graph.Groups, 7)
	assert.Empty(t, s.Graph.Nodes)
}

func TestDeepCopyIsIndependent(t *testing.T) {
	s := state.NewDefaultState("proj_1", "scn_1", newIdea(), newConstraints())
	cp := s.DeepCopy()

	cp.Idea.Name = "mutated"
	assert.NotEqual(t, s.Idea.Name, cp.Idea.Name)
}

func TestValidateSchemaRejectsUnknownTopLevelKey(t *testing.T) {
	s := state.NewDefaultState("proj_1", "scn_1", newIdea(), newConstraints())
	raw, err := s.ToJSON()
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	generic["bogus_section"] = json.RawMessage(`{"x": 1}`)
	mutated, err := json.Marshal(generic)
	require.NoError(t, err)

	err = state.ValidateSchema(mutated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_section")
}

func TestGetSetPathRoundTrip(t *testing.T) {
	s := state.NewDefaultState("proj_1", "scn_1", newIdea(), newConstraints())
	raw, err := s.ToJSON()
	require.NoError(t, err)

	updated, err := state.SetPath(raw, state.PatchReplace, "/decisions/pricing/metric", "per_seat")
	require.NoError(t, err)

	got, err := state.GetPath(updated, "/decisions/pricing/metric")
	require.NoError(t, err)
	assert.Equal(t, "per_seat", got.String())

	restored, err := state.FromJSON(updated)
	require.NoError(t, err)
	assert.Equal(t, "per_seat", restored.Decisions.Pricing.Metric)
}

func TestSetPathCreatesIntermediateContainers(t *testing.T) {
	s := state.NewDefaultState("proj_1", "scn_1", newIdea(), newConstraints())
	raw, err := s.ToJSON()
	require.NoError(t, err)

	updated, err := state.SetPath(raw, state.PatchAdd, "/decisions/channels/primary", "outbound_email")
	require.NoError(t, err)

	got, err := state.GetPath(updated, "/decisions/channels/primary")
	require.NoError(t, err)
	assert.Equal(t, "outbound_email", got.String())
}
