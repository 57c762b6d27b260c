package state

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns an opaque ID with the given prefix, e.g.
// NewID("run") -> "run_3fa9c1...". Opaque tokens are uninterpreted
// strings past their prefix.
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func emptyDecision() Decision {
	return Decision{
		SelectedOptionID:    "",
		Options:             []DecisionOption{},
		RecommendedOptionID: "",
		Override:            Override{IsCustom: false, Justification: ""},
	}
}

// NewDefaultState builds the zero-value CanonicalState for a freshly
// created scenario: idea and constraints are populated, every other
// section starts empty. Mirrors create_default_state's field set and
// defaults (pricing metric "", sales_motion "unset",
// execution.chosen_track "unset", the seven standing graph groups).
func NewDefaultState(projectID, scenarioID string, idea Idea, constraints Constraints) *CanonicalState {
	now := nowISO()
	if idea.Category == "" {
		idea.Category = CategoryB2BSaaS
	}
	if constraints.ComplianceLevel == "" {
		constraints.ComplianceLevel = ComplianceNone
	}

	return &CanonicalState{
		Meta: Meta{
			ProjectID:     projectID,
			ScenarioID:    scenarioID,
			RunID:         "unset",
			SchemaVersion: SchemaVersion,
			CreatedAt:     now,
			UpdatedAt:     now,
			UpdatedBy:     "system",
		},
		Idea:        idea,
		Constraints: constraints,
		Inputs: Inputs{
			IntakeAnswers:          []IntakeAnswer{},
			OpenQuestions:          []string{},
			ClarificationResponses: []string{},
		},
		Evidence: Evidence{
			Sources:           []Source{},
			Competitors:       []GenericClaim{},
			PricingAnchors:    []GenericClaim{},
			MessagingPatterns: []GenericClaim{},
			ChannelSignals:    []GenericClaim{},
			Teardowns:         []GenericClaim{},
			WeaknessMap:       []GenericClaim{},
			PositioningMap:    []GenericClaim{},
		},
		Decisions: Decisions{
			ICP:         ICPDecision{Decision: emptyDecision()},
			Positioning: PositioningDecision{Decision: emptyDecision()},
			Pricing: PricingDecision{
				Decision: emptyDecision(),
				Metric:   "",
				Tiers:    []PriceTier{},
			},
			Channels: ChannelsDecision{
				Decision:        emptyDecision(),
				PrimaryChannels: []string{},
			},
			SalesMotion: SalesMotionDecision{
				Decision: emptyDecision(),
				Motion:   MotionUnset,
			},
		},
		Pillars: Pillars{
			MarketIntelligence: Pillar{Nodes: []string{}},
			Customer:           Pillar{Nodes: []string{}},
			PositioningPricing: Pillar{Nodes: []string{}},
			GoToMarket:         Pillar{Nodes: []string{}},
			ProductTech:        Pillar{Nodes: []string{}},
			Execution:          Pillar{Nodes: []string{}},
			PeopleAndCash:      Pillar{Nodes: []string{}},
		},
		Graph: Graph{
			Nodes: []Node{},
			Edges: []Edge{},
			Groups: []Group{
				{ID: "group.market_intelligence", Title: "Market Intelligence", NodeIDs: []string{}},
				{ID: "group.customer", Title: "Customer", NodeIDs: []string{}},
				{ID: "group.positioning_pricing", Title: "Positioning & Pricing", NodeIDs: []string{}},
				{ID: "group.go_to_market", Title: "Go-to-Market", NodeIDs: []string{}},
				{ID: "group.product_tech", Title: "Product & Tech", NodeIDs: []string{}},
				{ID: "group.execution", Title: "Execution", NodeIDs: []string{}},
				{ID: "group.people_and_cash", Title: "People & Cash", NodeIDs: []string{}},
			},
		},
		Risks: Risks{
			Contradictions:           []Contradiction{},
			MissingProof:             []Contradiction{},
			HighRiskFlags:            []Contradiction{},
			UnresolvedContradictions: []Contradiction{},
		},
		Execution: Execution{
			ChosenTrack: "unset",
			NextActions: []string{},
			Experiments: []Experiment{},
			Assets:      []string{},
		},
		Telemetry: Telemetry{
			AgentTimings: []AgentTiming{},
			TokenSpend:   TokenSpend{ByAgent: []TokenSpendByAgent{}},
			Errors:       []TelemetryError{},
		},
	}
}
