package agent

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/state"
)

// RequiredIntakeFields lists the five discovery fields a scenario must
// collect before a run is considered ready to start, in the order
// they should be asked.
var RequiredIntakeFields = []string{
	"buyer_role",
	"company_type",
	"trigger_event",
	"current_workaround",
	"measurable_outcome",
}

// IntakeFieldPrompts gives a human-readable label for each required
// field, for whatever surface renders the question to the founder.
var IntakeFieldPrompts = map[string]string{
	"buyer_role":         "Who is the target buyer role?",
	"company_type":       "What type of company are you targeting?",
	"trigger_event":      "What triggers the purchase decision?",
	"current_workaround": "How do prospects solve this problem today?",
	"measurable_outcome": "What measurable outcome does the product deliver?",
}

// IntakeReadiness reports how much of the required intake a scenario
// has collected so far.
func IntakeReadiness(answers []state.IntakeAnswer) float64 {
	collected := map[string]bool{}
	for _, a := range answers {
		collected[a.QuestionID] = true
	}
	found := 0
	for _, f := range RequiredIntakeFields {
		if collected[f] {
			found++
		}
	}
	return float64(found) / float64(len(RequiredIntakeFields))
}

// NextIntakeField returns the first required field not yet answered,
// or "" once all five are collected.
func NextIntakeField(answers []state.IntakeAnswer) string {
	collected := map[string]bool{}
	for _, a := range answers {
		collected[a.QuestionID] = true
	}
	for _, f := range RequiredIntakeFields {
		if !collected[f] {
			return f
		}
	}
	return ""
}

// IntakeAgent is the synthetic "_intake" producer: it never runs as
// part of the scheduled agent sequence, and its output is never
// subject to the evidence-sourcing rules the merge engine applies to
// the rest of the pipeline. A caller owns the actual conversation (a
// CLI prompt, a chat surface) and drives the founder through
// RequiredIntakeFields one at a time; each raw answer is appended to
// Inputs.ClarificationResponses before Execute is called, and Execute
// drains the oldest unconsumed response into a structured
// IntakeAnswer against whatever field is next outstanding.
type IntakeAgent struct{}

// NewIntakeAgent constructs an IntakeAgent.
func NewIntakeAgent() *IntakeAgent {
	return &IntakeAgent{}
}

// Name implements core.Agent.
func (a *IntakeAgent) Name() core.AgentName {
	return core.AgentName("_intake")
}

// Execute implements core.Agent. It never calls an upstream provider:
// it only reshapes whatever the caller already queued in
// Inputs.ClarificationResponses into the next structured
// IntakeAnswer, and recomputes the open-questions backlog.
func (a *IntakeAgent) Execute(_ context.Context, stateJSON []byte, _ core.ExecuteOptions) (core.ExecuteResult, error) {
	s, err := state.FromJSON(stateJSON)
	if err != nil {
		return core.ExecuteResult{}, core.ErrInput("INTAKE_BAD_STATE", "decoding state snapshot").WithCause(err)
	}

	field := NextIntakeField(s.Inputs.IntakeAnswers)
	if field == "" || len(s.Inputs.ClarificationResponses) == 0 {
		// Nothing to collect or nothing queued to collect it with;
		// report the current backlog so a caller can decide whether
		// to keep prompting.
		out := state.AgentOutput{
			Agent:      string(a.Name()),
			RunID:      s.Meta.RunID,
			Patches:    []state.Patch{replaceOpenQuestionsPatch(s.Inputs.IntakeAnswers)},
		}
		return marshalOutput(out)
	}

	answer := s.Inputs.ClarificationResponses[0]
	remaining := append([]string{}, s.Inputs.ClarificationResponses[1:]...)
	collected := append([]state.IntakeAnswer{}, s.Inputs.IntakeAnswers...)
	collected = append(collected, state.IntakeAnswer{
		QuestionID: field,
		Question:   IntakeFieldPrompts[field],
		Answer:     answer,
	})

	out := state.AgentOutput{
		Agent: string(a.Name()),
		RunID: s.Meta.RunID,
		Patches: []state.Patch{
			{Op: state.PatchReplace, Path: "/inputs/intake_answers", Value: collected},
			{Op: state.PatchReplace, Path: "/inputs/clarification_responses", Value: remaining},
			replaceOpenQuestionsPatch(collected),
		},
	}
	return marshalOutput(out)
}

func replaceOpenQuestionsPatch(answers []state.IntakeAnswer) state.Patch {
	collected := map[string]bool{}
	for _, a := range answers {
		collected[a.QuestionID] = true
	}
	var open []string
	for _, f := range RequiredIntakeFields {
		if !collected[f] {
			open = append(open, f)
		}
	}
	sort.Strings(open)
	return state.Patch{Op: state.PatchReplace, Path: "/inputs/open_questions", Value: open}
}

func marshalOutput(out state.AgentOutput) (core.ExecuteResult, error) {
	raw, err := json.Marshal(out)
	if err != nil {
		return core.ExecuteResult{}, core.ErrInternal("INTAKE_ENCODE_FAILED", "encoding intake output").WithCause(err)
	}
	return core.ExecuteResult{OutputJSON: raw}, nil
}

var _ core.Agent = (*IntakeAgent)(nil)
