package validator

import (
	"strings"

	"github.com/gtmcore/orchestrator/internal/state"
)

// advisoryCheck is one cross-pillar rule: a severity label plus a check
// function that reports whether the rule is violated, given the full
// scenario state. Unlike the fourteen-rule Run, these never set
// Blocking — a failed check only ever lands in risks.high_risk_flags.
type advisoryCheck struct {
	id       string
	severity state.Severity
	check    func(s *state.CanonicalState) (violated bool, message string, paths []string, fix string)
}

// baseAdvisoryRules run for every scenario regardless of category,
// compliance level, or team size.
var baseAdvisoryRules = []advisoryCheck{
	{
		id:       "OR-01",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			size := s.Decisions.ICP.Profile.CompanySize
			if (size == "enterprise" || size == "500+") && s.Decisions.Pricing.PriceToTest > 0 && s.Decisions.Pricing.PriceToTest < 50 {
				return true, "Enterprise ICP paired with a sub-$50 price point; enterprise buyers expect a price that signals procurement-grade support.",
					[]string{"/decisions/icp/profile/company_size", "/decisions/pricing/price_to_test"},
					"Raise the price-to-test or add a dedicated enterprise tier."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-02",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.ICP.SelectedOptionID != "" && s.Decisions.Positioning.SelectedOptionID != "" && s.Decisions.Positioning.Frame.ValueProp == "" {
				return true, "ICP is selected but positioning has no value proposition to address its pain points.",
					[]string{"/decisions/icp/selected_option_id", "/decisions/positioning/frame/value_prop"},
					"Fill in the value proposition before moving past positioning."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-03",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			motion := s.Decisions.SalesMotion.Motion
			primary := strings.ToLower(s.Decisions.Channels.Primary)
			if motion == state.MotionSalesLed && (primary == "paid_social" || primary == "self_serve" || primary == "product_led") {
				return true, "Sales-led motion paired with a self-serve primary channel; the two don't fund the same GTM loop.",
					[]string{"/decisions/sales_motion/motion", "/decisions/channels/primary"},
					"Pick an outbound or partnership-heavy primary channel for a sales-led motion."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-04",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			motion := s.Decisions.SalesMotion.Motion
			if motion == state.MotionPLG && len(s.Decisions.Pricing.Tiers) > 0 {
				hasSelfServe := false
				for _, t := range s.Decisions.Pricing.Tiers {
					if t.PriceUSD < 100 {
						hasSelfServe = true
						break
					}
				}
				if !hasSelfServe {
					return true, "PLG motion has no tier priced for self-serve checkout (all tiers at or above $100).",
						[]string{"/decisions/sales_motion/motion", "/decisions/pricing/tiers"},
						"Add a self-serve tier under $100 or reconsider the motion."
				}
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-05",
		severity: state.SeverityLow,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Execution.ChosenTrack != "" && s.Execution.ChosenTrack != "unset" && len(s.Execution.Experiments) == 0 {
				return true, "An execution track is chosen but no validation experiments are attached to it.",
					[]string{"/execution/chosen_track", "/execution/experiments"},
					"Attach at least one experiment per open assumption."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-06",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Execution.ChosenTrack == "" || s.Execution.ChosenTrack == "unset" {
				return false, "", nil, ""
			}
			for _, n := range s.Graph.Nodes {
				if n.ID == "product.mvp_scope" {
					return false, "", nil, ""
				}
			}
			return true, "An execution track is chosen but no MVP scope node exists in the decision graph.",
				[]string{"/execution/chosen_track", "/graph/nodes"},
				"Run the product strategy agent before locking the execution track."
		},
	},
	{
		id:       "OR-07",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.Pricing.PriceToTest > 0 && s.Constraints.BudgetUSDMonthly > 0 && s.Pillars.PeopleAndCash.Summary == "" {
				return true, "Pricing is decided and a monthly budget is set, but the people/cash pillar has no burn-rate summary reconciling the two.",
					[]string{"/decisions/pricing/price_to_test", "/constraints/budget_usd_monthly", "/pillars/people_and_cash"},
					"Run the people/cash agent to size burn rate and runway against the pricing decision."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-08",
		severity: state.SeverityLow,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if len(s.Decisions.ICP.Options) > 0 && len(s.Evidence.Sources) < 3 {
				return true, "Fewer than three distinct evidence sources back the scenario; claims may rest on thin research.",
					[]string{"/evidence/sources"},
					"Run another evidence-collection pass before relying on the current claims."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-09",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if len(s.Evidence.Competitors) > 0 && len(s.Evidence.Teardowns) == 0 {
				return true, "Competitors were identified but no teardown breaks down their positioning, pricing, or gaps.",
					[]string{"/evidence/competitors", "/evidence/teardowns"},
					"Run the competitive teardown agent against the identified competitors."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-10",
		severity: state.SeverityLow,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.Positioning.Frame.ValueProp != "" && len(s.Evidence.MessagingPatterns) == 0 {
				return true, "Positioning has a value proposition but no messaging-pattern evidence grounds it against what competitors already say.",
					[]string{"/decisions/positioning/frame/value_prop", "/evidence/messaging_patterns"},
					"Collect messaging-pattern evidence before finalizing positioning."
			}
			return false, "", nil, ""
		},
	},
}

// b2cAdvisoryRules fire only for b2c-category ideas.
var b2cAdvisoryRules = []advisoryCheck{
	{
		id:       "OR-11",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.SalesMotion.Motion == state.MotionSalesLed {
				return true, "A consumer-facing idea has chosen a sales-led motion; consumer buyers rarely tolerate a sales cycle.",
					[]string{"/idea/category", "/decisions/sales_motion/motion"},
					"Reconsider PLG or outbound-led for a consumer audience."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-12",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Constraints.ComplianceLevel == state.ComplianceHigh {
				hasPrivacyPlan := s.Pillars.Execution.Extra != nil && nonEmptyString(s.Pillars.Execution.Extra["privacy_plan"])
				if !hasPrivacyPlan {
					return true, "High compliance on a consumer product with no consumer data privacy plan recorded.",
						[]string{"/constraints/compliance_level", "/pillars/execution"},
						"Record a privacy plan covering consumer data handling."
				}
			}
			return false, "", nil, ""
		},
	},
}

// devToolsAdvisoryRules fire for ideas whose domain reads as a
// developer-facing product (API, SDK, CLI, platform for builders).
var devToolsAdvisoryRules = []advisoryCheck{
	{
		id:       "OR-13",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.Channels.SelectedOptionID == "" {
				return false, "", nil, ""
			}
			for _, c := range s.Decisions.Channels.PrimaryChannels {
				lc := strings.ToLower(c)
				if strings.Contains(lc, "docs") || strings.Contains(lc, "developer") || strings.Contains(lc, "api") || strings.Contains(lc, "oss") {
					return false, "", nil, ""
				}
			}
			return true, "Developer-facing product has no docs/API-first channel among its primary channels.",
				[]string{"/decisions/channels/primary_channels"},
				"Add a developer-docs or open-source-led channel."
		},
	},
	{
		id:       "OR-14",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			metric := strings.ToLower(s.Decisions.Pricing.Metric)
			if metric == "" {
				return false, "", nil, ""
			}
			for _, kw := range []string{"usage", "api_call", "request", "seat", "compute"} {
				if strings.Contains(metric, kw) {
					return false, "", nil, ""
				}
			}
			return true, "Developer-facing product's pricing metric doesn't key off usage, seats, or compute.",
				[]string{"/decisions/pricing/metric"},
				"Consider a usage-based or per-seat metric for a developer tool."
		},
	},
}

// verticalSaaSAdvisoryRules fire for ideas whose domain names a
// regulated or specialized vertical (healthcare, legal, fintech, and
// similar industry-specific software).
var verticalSaaSAdvisoryRules = []advisoryCheck{
	{
		id:       "OR-15",
		severity: state.SeverityHigh,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Constraints.ComplianceLevel == state.ComplianceNone {
				return true, "Vertical-specific product is carrying no compliance requirement; most regulated verticals require at least a medium compliance posture.",
					[]string{"/idea/domain", "/constraints/compliance_level"},
					"Confirm the vertical's regulatory requirements and raise the compliance level if warranted."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-16",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.ICP.SelectedOptionID != "" && s.Decisions.ICP.Profile.BudgetOwner == "" {
				return true, "Vertical SaaS ICP has no named budget owner; vertical buying committees are rarely a single self-serve user.",
					[]string{"/decisions/icp/profile/budget_owner"},
					"Name the budget-owning role for the selected ICP."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-17",
		severity: state.SeverityLow,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			if s.Decisions.Channels.SelectedOptionID == "" {
				return false, "", nil, ""
			}
			secondary := strings.ToLower(s.Decisions.Channels.Secondary)
			if strings.Contains(secondary, "conference") || strings.Contains(secondary, "partner") || strings.Contains(secondary, "association") {
				return false, "", nil, ""
			}
			return true, "Vertical SaaS has no industry-conference or partnership channel as a secondary channel.",
				[]string{"/decisions/channels/secondary"},
				"Add an industry association or conference-led secondary channel."
		},
	},
}

// complianceAdvisoryRules fire whenever the scenario's compliance level
// is above "none".
var complianceAdvisoryRules = []advisoryCheck{
	{
		id:       "OR-18",
		severity: state.SeverityHigh,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			hasDataResidency := s.Pillars.Execution.Extra != nil && nonEmptyString(s.Pillars.Execution.Extra["data_residency_plan"])
			if !hasDataResidency {
				return true, "Compliance level above none but no data residency plan is recorded.",
					[]string{"/constraints/compliance_level", "/pillars/execution"},
					"Record where data is stored and processed before finalizing."
			}
			return false, "", nil, ""
		},
	},
	{
		id:       "OR-19",
		severity: state.SeverityMedium,
		check: func(s *state.CanonicalState) (bool, string, []string, string) {
			for _, e := range s.Execution.Experiments {
				if strings.Contains(strings.ToLower(e.Hypothesis), "complian") {
					return false, "", nil, ""
				}
			}
			return true, "Compliance level above none but no experiment validates a compliance-related assumption.",
				[]string{"/constraints/compliance_level", "/execution/experiments"},
				"Add an experiment validating the compliance approach (e.g. a customer security review)."
		},
	},
}

// marketplaceAdvisoryRule fires for two-sided marketplace ideas.
var marketplaceAdvisoryRule = advisoryCheck{
	id:       "OR-20",
	severity: state.SeverityMedium,
	check: func(s *state.CanonicalState) (bool, string, []string, string) {
		if s.Decisions.Channels.SelectedOptionID == "" {
			return false, "", nil, ""
		}
		if len(s.Decisions.Channels.PrimaryChannels) < 2 {
			return true, "Two-sided marketplace has fewer than two primary channels; supply and demand sides usually need distinct acquisition loops.",
				[]string{"/decisions/channels/primary_channels"},
				"Add a distinct channel for the supply side and the demand side."
		}
		return false, "", nil, ""
	},
}

// soloFounderAdvisoryRule fires when the team is one or two people.
var soloFounderAdvisoryRule = advisoryCheck{
	id:       "OR-21",
	severity: state.SeverityHigh,
	check: func(s *state.CanonicalState) (bool, string, []string, string) {
		if s.Execution.ChosenTrack == "full_build" {
			return true, "A one-to-two person team has chosen a full-build execution track; that track assumes more engineering bandwidth than the team has.",
				[]string{"/constraints/team_size", "/execution/chosen_track"},
				"Pick a wedge or fast-follow track sized to the team."
		}
		return false, "", nil, ""
	},
}

// gapViabilityAdvisoryRule fires when evidence surfaces a red-flag
// competitive gap type (something already attempted and failed, or
// already owned by a well-funded incumbent).
var gapViabilityAdvisoryRule = advisoryCheck{
	id:       "OR-22",
	severity: state.SeverityHigh,
	check: func(s *state.CanonicalState) (bool, string, []string, string) {
		gapType, found := redFlagGapType(s)
		if !found {
			return false, "", nil, ""
		}
		if s.Decisions.Positioning.Frame.ValueProp == "" {
			return true, "Evidence flags a " + gapType + " gap, but positioning has no value proposition addressing why this attempt differs.",
				[]string{"/evidence/weakness_map", "/decisions/positioning/frame/value_prop"},
				"Explain in the value proposition what changes this time (timing, wedge, distribution)."
		}
		return false, "", nil, ""
	},
}

// redFlagGapType scans teardown and weakness-map evidence for a gap
// type that historically predicts a non-viable opportunity: a gap
// already attempted and abandoned, or one already owned by a
// well-funded incumbent.
func redFlagGapType(s *state.CanonicalState) (string, bool) {
	redFlags := map[string]bool{
		"attempted_and_failed":   true,
		"well_funded_incumbent": true,
	}
	for _, claims := range [][]state.GenericClaim{s.Evidence.Teardowns, s.Evidence.WeaknessMap} {
		for _, c := range claims {
			gapType, _ := c.Data["gap_type"].(string)
			if redFlags[gapType] {
				return gapType, true
			}
		}
	}
	return "", false
}

// isDevToolsDomain reports whether the idea's free-form domain reads
// as a developer-facing product.
func isDevToolsDomain(s *state.CanonicalState) bool {
	d := strings.ToLower(s.Idea.Domain)
	for _, kw := range []string{"dev tool", "developer", "api", "sdk", "cli", "infra"} {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// isVerticalSaaSDomain reports whether the idea's free-form domain
// names a regulated or specialized industry vertical.
func isVerticalSaaSDomain(s *state.CanonicalState) bool {
	d := strings.ToLower(s.Idea.Domain)
	for _, kw := range []string{"health", "medical", "legal", "fintech", "insurance", "education", "real estate", "construction", "logistics"} {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// isMarketplaceIdea reports whether the idea text itself describes a
// two-sided marketplace or platform, independent of its Category.
func isMarketplaceIdea(s *state.CanonicalState) bool {
	if s.Idea.Category == state.CategoryMarketplace {
		return true
	}
	text := strings.ToLower(s.Idea.OneLiner + " " + s.Idea.Problem + " " + s.Idea.Domain)
	for _, kw := range []string{"marketplace", "platform", "two-sided", "two sided"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// loadAdvisoryRules assembles the rule set applicable to s, mirroring
// the category/compliance/team-size/evidence-conditional selection the
// cross-pillar rule registry this package's advisory pass is grounded
// on applies dynamically per scenario.
func loadAdvisoryRules(s *state.CanonicalState) []advisoryCheck {
	rules := make([]advisoryCheck, 0, len(baseAdvisoryRules)+8)
	rules = append(rules, baseAdvisoryRules...)

	if s.Idea.Category == state.CategoryB2C {
		rules = append(rules, b2cAdvisoryRules...)
	}
	if isDevToolsDomain(s) {
		rules = append(rules, devToolsAdvisoryRules...)
	}
	if isVerticalSaaSDomain(s) {
		rules = append(rules, verticalSaaSAdvisoryRules...)
	}
	if s.Constraints.ComplianceLevel != state.ComplianceNone {
		rules = append(rules, complianceAdvisoryRules...)
	}
	if isMarketplaceIdea(s) {
		rules = append(rules, marketplaceAdvisoryRule)
	}
	if s.Constraints.TeamSize > 0 && s.Constraints.TeamSize <= 2 {
		rules = append(rules, soloFounderAdvisoryRule)
	}
	if _, found := redFlagGapType(s); found {
		rules = append(rules, gapViabilityAdvisoryRule)
	}
	return rules
}

// RunAdvisory evaluates the cross-pillar advisory rule set against s
// and returns the violated entries as Contradictions. It never sets
// Blocking and never touches s.Risks itself — callers fold the result
// into risks.high_risk_flags alongside Run's output.
func RunAdvisory(s *state.CanonicalState) []state.Contradiction {
	var flags []state.Contradiction
	for _, rule := range loadAdvisoryRules(s) {
		violated, message, paths, fix := rule.check(s)
		if !violated {
			continue
		}
		flags = append(flags, contradiction(rule.id, rule.severity, message, paths, fix))
	}
	return flags
}

// ValidateForExport runs the blocking rule set with the export gate
// set, then layers the advisory pass on top, appending its findings to
// risks.high_risk_flags. It backs the scenario export readiness check.
func ValidateForExport(s *state.CanonicalState) Result {
	return runWithAdvisory(s, Gates{ExportFinal: true, Finalize: true})
}

// ValidateForCompletion runs the blocking rule set with the
// mark-complete gate set, then layers the advisory pass on top. It
// backs the scenario completion endpoint.
func ValidateForCompletion(s *state.CanonicalState) Result {
	return runWithAdvisory(s, Gates{MarkComplete: true, Finalize: true})
}

func runWithAdvisory(s *state.CanonicalState, gates Gates) Result {
	result := Run(s, gates)
	advisory := RunAdvisory(s)
	s.Risks.HighRiskFlags = append(s.Risks.HighRiskFlags, advisory...)
	result.HighRiskFlags = s.Risks.HighRiskFlags
	return result
}
