// Package validator implements the fixed fourteen-rule deterministic
// gate that runs over a CanonicalState after every merge pass, plus
// the non-blocking advisory pass layered on top of it.
package validator

import (
	"strings"

	"github.com/gtmcore/orchestrator/internal/state"
)

// minJustificationLen is the shortest custom-override justification
// V-CONT-01 accepts.
const minJustificationLen = 20

// Gates controls which finalize/export/completion-only rules fire.
// A plain reconciliation-pass run leaves all three false and only the
// always-on rules (V-CHAN-01, V-SALES-01/02, V-PRICE-02, V-EVID-01/02,
// V-PEOPLE-01, V-CONT-01) are evaluated, plus V-PRICE-01 once pricing
// tiers exist.
type Gates struct {
	ExportFinal bool
	Finalize    bool
	MarkComplete bool
}

// Result is the validator's verdict: whether the run is blocked, plus
// the three risk buckets it recomputed.
type Result struct {
	Blocking        bool
	Contradictions  []state.Contradiction
	MissingProof    []state.Contradiction
	HighRiskFlags   []state.Contradiction
}

func contradiction(ruleID string, severity state.Severity, message string, paths []string, recommendedFix ...string) state.Contradiction {
	c := state.Contradiction{RuleID: ruleID, Severity: severity, Message: message, Paths: paths}
	if len(recommendedFix) > 0 {
		c.RecommendedFix = recommendedFix[0]
	}
	return c
}

func isBlocking(sev state.Severity) bool {
	return sev == state.SeverityCritical || sev == state.SeverityHigh
}

// Run evaluates all fourteen rules against s and overwrites
// s.Risks.Contradictions/MissingProof/HighRiskFlags with the result.
// Pre-existing high_risk_flags with an "OVERRIDE-" rule_id prefix
// (user-acknowledged risk acceptances) survive across runs; every
// other entry is recomputed from scratch.
func Run(s *state.CanonicalState, gates Gates) Result {
	var contradictions []state.Contradiction
	var missingProof []state.Contradiction
	var highRiskFlags []state.Contradiction
	for _, item := range s.Risks.HighRiskFlags {
		if strings.HasPrefix(item.RuleID, "OVERRIDE-") {
			highRiskFlags = append(highRiskFlags, item)
		}
	}
	blocking := false

	add := func(c state.Contradiction) {
		contradictions = append(contradictions, c)
		if isBlocking(c.Severity) {
			blocking = true
		}
	}

	decisions := s.Decisions

	// V-ICP-01: ICP selection required before finalization.
	if gates.Finalize && decisions.ICP.SelectedOptionID == "" {
		add(contradiction("V-ICP-01", state.SeverityCritical,
			"ICP selection is required before finalization.",
			[]string{"/decisions/icp/selected_option_id"}))
	}

	// V-PROD-01: value proposition required before finalization.
	if gates.Finalize && decisions.Positioning.Frame.ValueProp == "" {
		add(contradiction("V-PROD-01", state.SeverityCritical,
			"Value proposition is missing.",
			[]string{"/decisions/positioning/frame/value_prop"}))
	}

	// V-PRICE-01: pricing metric required once tiers exist or the run
	// is headed to completion/export.
	pricingMetric := decisions.Pricing.Metric
	if pricingMetric == "" && (len(decisions.Pricing.Tiers) > 0 || gates.Finalize || gates.MarkComplete) {
		add(contradiction("V-PRICE-01", state.SeverityCritical,
			"Pricing metric is required before completion/export.",
			[]string{"/decisions/pricing/metric", "/decisions/pricing/tiers"}))
	}

	// V-CHAN-01: advisory-only focus check, never blocks.
	primaryChannels := decisions.Channels.PrimaryChannels
	if (s.Idea.Category == state.CategoryB2BSaaS || s.Idea.Category == state.CategoryB2BServices) && len(primaryChannels) > 2 {
		highRiskFlags = append(highRiskFlags, contradiction("V-CHAN-01", state.SeverityHigh,
			"Focus failure: keep at most one primary plus one secondary channel.",
			[]string{"/decisions/channels/primary_channels"},
			"Reduce to one primary and one backup channel."))
	}

	// V-SALES-01: PLG-only motion against an enterprise/procurement ICP.
	motion := decisions.SalesMotion.Motion
	companySize := decisions.ICP.Profile.CompanySize
	if motion == state.MotionPLG && (companySize == "enterprise" || companySize == "500+" || decisions.ICP.Profile.BudgetOwner == "procurement") {
		add(contradiction("V-SALES-01", state.SeverityHigh,
			"PLG-only motion conflicts with enterprise/procurement ICP.",
			[]string{"/decisions/sales_motion/motion", "/decisions/icp/profile/company_size", "/decisions/icp/profile/budget_owner"},
			"Switch motion or add enterprise sales support plan."))
	}

	// V-SALES-02: outbound motion with low price on a very small ICP
	// is advisory (medium) — it never sets blocking.
	priceToTest := decisions.Pricing.PriceToTest
	if motion == state.MotionOutboundLed && (companySize == "1-10" || companySize == "1-20") && priceToTest <= 99 {
		contradictions = append(contradictions, contradiction("V-SALES-02", state.SeverityMedium,
			"Outbound motion with low price on very small ICP may have poor unit economics.",
			[]string{"/decisions/sales_motion/motion", "/decisions/pricing/price_to_test"}))
	}

	// V-PRICE-02: high price-to-test without willingness-to-pay proof.
	if priceToTest >= 500 && len(s.Evidence.PricingAnchors) == 0 {
		missingProof = append(missingProof, contradiction("V-PRICE-02", state.SeverityHigh,
			"Price-to-test is high without willingness-to-pay proof.",
			[]string{"/decisions/pricing/price_to_test", "/evidence/pricing_anchors"},
			"Run WTP interviews or collect paid pilot signals."))
	}

	// V-TECH-01: high compliance requires a security/data handling plan.
	if s.Constraints.ComplianceLevel == state.ComplianceHigh {
		hasSecurityNode := false
		for _, n := range s.Graph.Nodes {
			if n.ID == "product.security_plan" {
				hasSecurityNode = true
				break
			}
		}
		hasSecuritySummary := s.Pillars.Execution.Extra != nil && nonEmptyString(s.Pillars.Execution.Extra["security_plan"])
		if gates.Finalize && !(hasSecurityNode || hasSecuritySummary) {
			add(contradiction("V-TECH-01", state.SeverityCritical,
				"High compliance requires a security/data handling plan.",
				[]string{"/constraints/compliance_level", "/pillars/execution/security_plan"}))
		}
	}

	// V-EVID-01: competitor evidence required outside the b2c category.
	if s.Idea.Category != state.CategoryB2C && len(s.Evidence.Competitors) == 0 {
		missingProof = append(missingProof, contradiction("V-EVID-01", state.SeverityHigh,
			"Competitor evidence is missing for non-novel category.",
			[]string{"/evidence/competitors"},
			"Rerun evidence collection or confirm greenfield market."))
	}

	// V-EVID-02: pricing decided without pricing anchors.
	if pricingMetric != "" && len(s.Evidence.PricingAnchors) == 0 {
		missingProof = append(missingProof, contradiction("V-EVID-02", state.SeverityHigh,
			"Pricing is decided without pricing anchors evidence.",
			[]string{"/evidence/pricing_anchors", "/decisions/pricing/metric"},
			"Collect competitor pricing anchors or run WTP experiment."))
	}

	// V-EXEC-01: execution track required before final export.
	if gates.ExportFinal && s.Execution.ChosenTrack == "unset" {
		add(contradiction("V-EXEC-01", state.SeverityHigh,
			"Execution track must be selected before final export.",
			[]string{"/execution/chosen_track"},
			"Select a track or use draft export."))
	}

	// V-OPS-01: execution pillar must be non-empty to mark complete.
	if gates.MarkComplete && len(s.Execution.NextActions) == 0 {
		add(contradiction("V-OPS-01", state.SeverityHigh,
			"Execution pillar is empty; scenario cannot be marked complete.",
			[]string{"/execution/next_actions", "/pillars/execution"}))
	}

	// V-PEOPLE-01: advisory medium — people/cash pillar under-defined
	// relative to a decided pricing strategy.
	if pricingMetric != "" && s.Pillars.PeopleAndCash.Summary == "" {
		contradictions = append(contradictions, contradiction("V-PEOPLE-01", state.SeverityMedium,
			"People and cash pillar is under-defined relative to pricing decision.",
			[]string{"/pillars/people_and_cash", "/decisions/pricing"}))
	}

	// V-CONT-01: any custom override requires a justification of at
	// least minJustificationLen characters, long enough to carry an
	// actual reason rather than a placeholder.
	for _, key := range []string{"icp", "positioning", "pricing", "channels", "sales_motion"} {
		override := overrideFor(decisions, key)
		if override.IsCustom && len(strings.TrimSpace(override.Justification)) < minJustificationLen {
			add(contradiction("V-CONT-01", state.SeverityHigh,
				"Custom override on "+key+" requires justification.",
				[]string{"/decisions/" + key + "/override/justification"}))
		}
	}

	s.Risks.Contradictions = contradictions
	s.Risks.MissingProof = missingProof
	s.Risks.HighRiskFlags = highRiskFlags

	return Result{
		Blocking:       blocking,
		Contradictions: contradictions,
		MissingProof:   missingProof,
		HighRiskFlags:  highRiskFlags,
	}
}

func overrideFor(d state.Decisions, key string) state.Override {
	switch key {
	case "icp":
		return d.ICP.Override
	case "positioning":
		return d.Positioning.Override
	case "pricing":
		return d.Pricing.Override
	case "channels":
		return d.Channels.Override
	case "sales_motion":
		return d.SalesMotion.Override
	default:
		return state.Override{}
	}
}

func nonEmptyString(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case nil:
		return false
	default:
		return true
	}
}
