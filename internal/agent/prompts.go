package agent

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/gtmcore/orchestrator/internal/core"
)

// systemPrompts carries each agent's standing instructions: its
// pillar focus and the AgentOutput JSON shape it must return. The
// thirteen-agent sequence and their pillar ownership are grounded on
// dependencies.py / the agents package; the required-shape reminder
// is identical across agents by design, since they all feed the same
// merge engine.
var systemPrompts = map[core.AgentName]string{
	"evidence_collector":   "You are a market research analyst. Given the product idea, surface competitors, pricing anchors, messaging patterns, and channel signals as dated, sourced claims.",
	"competitive_teardown": "You are a competitive analyst. Given the gathered evidence, produce a structured teardown of the top 3-5 competitors: positioning, pricing, and gaps the idea could exploit.",
	"icp":                  "You are an ICP strategist. Generate 2-3 ideal customer profile options with company size, budget owner, pain points, and buying triggers.",
	"positioning":          "You are a positioning strategist. Propose 2-3 value-proposition framings against the selected ICP and competitive evidence.",
	"pricing":              "You are a pricing strategist. Propose a pricing metric, tier table, and a price point to test, grounded in pricing-anchor evidence.",
	"channels":             "You are a go-to-market channel strategist. Propose primary and secondary acquisition channels matched to the ICP and sales motion.",
	"sales_motion":         "You are a sales motion strategist. Recommend PLG, outbound-led, sales-led, or hybrid given team size, ICP, and pricing.",
	"product_strategy":     "You are a product strategist. Define the MVP scope, build-vs-buy calls, and the product roadmap's first milestones.",
	"tech_feasibility":     "You are a technical feasibility reviewer. Flag architecture risks, compliance requirements, and a security plan when compliance is non-trivial.",
	"people_cash":          "You are an operations planner. Size the team, burn rate, and runway implied by the pricing and execution decisions so far.",
	"execution":            "You are an execution planner. Choose a track (fast-follow, wedge, full-build) and list the next 30/60/90-day actions and experiments.",
	"graph_builder":        "You assemble the scenario's decision graph: upsert nodes per pillar, wire dependency edges, and group nodes for display.",
	"validator":            "You audit the scenario state for contradictions, missing proof, and unresolved risk, using the fixed rule table.",
}

// outputContract is appended to every agent prompt: the exact JSON
// shape the merge engine expects back.
const outputContract = `
Return a single JSON object, no prose, shaped exactly as:
{
  "patches": [{"op": "add|replace|remove", "path": "/json/pointer", "value": <any>, "meta": {"source_type": "evidence|inference|assumption", "confidence": 0.0, "sources": ["url"]}}],
  "proposals": [{"decision_key": "icp|positioning|pricing|channels|sales_motion", "options": [{"id": "string", "label": "string", "data": {}}], "recommended_option_id": "string"}],
  "facts": [{"claim": "string", "confidence": 0.0, "supporting_sources": ["url"]}],
  "assumptions": [{"statement": "string", "how_to_validate": "string", "confidence": 0.0}],
  "risks": [{"rule_id": "string", "severity": "critical|high|medium|low", "message": "string", "paths": ["string"]}],
  "required_inputs": ["string"],
  "node_updates": [{"node_id": "string", "action": "create|update|finalize", "payload": {"id": "string", "title": "string", "pillar": "string", "type": "string", "content": "string"}}]
}
Omit keys with nothing to report; never fabricate a field this schema doesn't define.
`

// BuildPrompt renders the user-turn prompt for agent, combining its
// system prompt with a condensed view of the current state so every
// provider call stays within a reasonable context budget.
func BuildPrompt(name core.AgentName, stateJSON []byte, changedDecision string) (system, user string, err error) {
	system, ok := systemPrompts[name]
	if !ok {
		return "", "", fmt.Errorf("agent/prompts: no system prompt registered for %q", name)
	}
	system += outputContract

	idea := gjson.GetBytes(stateJSON, "idea")
	constraints := gjson.GetBytes(stateJSON, "constraints")
	decisions := gjson.GetBytes(stateJSON, "decisions")
	evidence := gjson.GetBytes(stateJSON, "evidence")

	user = fmt.Sprintf(
		"Idea:\n%s\n\nConstraints:\n%s\n\nDecisions so far:\n%s\n\nEvidence so far:\n%s\n",
		idea.Raw, constraints.Raw, decisions.Raw, evidence.Raw,
	)
	if changedDecision != "" {
		user += fmt.Sprintf("\nThe user just changed the %q decision; reconcile your output with that change.\n", changedDecision)
	}
	return system, user, nil
}
