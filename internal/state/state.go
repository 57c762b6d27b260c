// Package state defines the CanonicalState document — the single
// JSON-shaped value that holds everything known about one scenario at
// one checkpoint — and the AgentOutput shape that producers submit
// for merging into it.
package state

// SchemaVersion is bumped whenever a top-level section's shape
// changes in a way that breaks old checkpoints.
const SchemaVersion = "1.0.0"

// MetaRef is attached to every leaf claim an agent contributes.
type MetaRef struct {
	SourceType SourceType `json:"source_type"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources"`
	UpdatedBy  string     `json:"updated_by"`
	UpdatedAt  string     `json:"updated_at"`
}

// SourceType is a closed enum: a claim is either backed by evidence,
// derived by inference, or an unverified assumption.
type SourceType string

const (
	SourceEvidence   SourceType = "evidence"
	SourceInference  SourceType = "inference"
	SourceAssumption SourceType = "assumption"
)

// Severity is a closed enum governing gate behavior: critical blocks
// completion and export, high requires remediation or override,
// medium lowers confidence, low is informational.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Motion is the sales-motion decision's closed enum.
type Motion string

const (
	MotionUnset      Motion = "unset"
	MotionPLG        Motion = "plg"
	MotionOutboundLed Motion = "outbound_led"
	MotionSalesLed   Motion = "sales_led"
	MotionHybrid     Motion = "hybrid"
)

// Category is the idea's closed enum, driving several validator rules.
type Category string

const (
	CategoryB2BSaaS     Category = "b2b_saas"
	CategoryB2BServices Category = "b2b_services"
	CategoryB2C         Category = "b2c"
	CategoryMarketplace Category = "marketplace"
)

// ComplianceLevel is the constraints' closed enum.
type ComplianceLevel string

const (
	ComplianceNone   ComplianceLevel = "none"
	ComplianceMedium ComplianceLevel = "medium"
	ComplianceHigh   ComplianceLevel = "high"
)

// Meta holds run/scenario/project identity and schema bookkeeping.
// Owned exclusively by the runtime: agents never write here.
type Meta struct {
	ProjectID     string `json:"project_id"`
	ScenarioID    string `json:"scenario_id"`
	RunID         string `json:"run_id"`
	SchemaVersion string `json:"schema_version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	UpdatedBy     string `json:"updated_by"`
}

// Idea is set at scenario creation and never mutated by agents.
type Idea struct {
	Name         string   `json:"name"`
	OneLiner     string   `json:"one_liner"`
	Problem      string   `json:"problem"`
	TargetRegion string   `json:"target_region"`
	Category     Category `json:"category"`
	Domain       string   `json:"domain"`
}

// Constraints is set at creation and read-only to agents.
type Constraints struct {
	TeamSize          int             `json:"team_size"`
	TimelineWeeks     int             `json:"timeline_weeks"`
	BudgetUSDMonthly  float64         `json:"budget_usd_monthly"`
	ComplianceLevel   ComplianceLevel `json:"compliance_level"`
}

// IntakeAnswer is one ordered question/answer pair from the intake module.
type IntakeAnswer struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// Inputs is written by the intake module and read-only to agents.
type Inputs struct {
	IntakeAnswers          []IntakeAnswer `json:"intake_answers"`
	OpenQuestions          []string       `json:"open_questions"`
	ClarificationResponses []string       `json:"clarification_responses"`
}

// Source is one deduplicated evidence source.
type Source struct {
	URL          string   `json:"url"`
	CanonicalURL string   `json:"canonical_url"`
	Title        string   `json:"title"`
	Snippets     []string `json:"snippets"`
	QualityScore float64  `json:"quality_score"`
	MetaRef
}

// Evidence aggregates everything the evidence-collector agent (and
// the competitive-teardown / channel-research agents) contribute.
type Evidence struct {
	Sources            []Source        `json:"sources"`
	Competitors        []GenericClaim  `json:"competitors"`
	PricingAnchors     []GenericClaim  `json:"pricing_anchors"`
	MessagingPatterns  []GenericClaim  `json:"messaging_patterns"`
	ChannelSignals     []GenericClaim  `json:"channel_signals"`
	Teardowns          []GenericClaim  `json:"teardowns"`
	WeaknessMap        []GenericClaim  `json:"weakness_map"`
	PositioningMap     []GenericClaim  `json:"positioning_map"`
}

// GenericClaim is a loosely-shaped evidence entry: agents attach
// whatever fields their domain needs under Data, with a required
// MetaRef for provenance.
type GenericClaim struct {
	ID   string                 `json:"id,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
	MetaRef
}

// DecisionOption is one candidate value an agent proposed for a
// decision slot.
type DecisionOption struct {
	ID                  string                 `json:"id"`
	Label               string                 `json:"label"`
	Data                map[string]interface{} `json:"data,omitempty"`
	RecommendedByAgent  string                 `json:"recommended_by_agent,omitempty"`
}

// Override records a user-supplied decision with required justification.
type Override struct {
	IsCustom      bool   `json:"is_custom"`
	Justification string `json:"justification"`
}

// Decision is one of the five decision slots. Agents may only
// contribute Options/RecommendedOptionID via proposals; only the
// runtime writes SelectedOptionID.
type Decision struct {
	SelectedOptionID     string           `json:"selected_option_id"`
	Options              []DecisionOption `json:"options"`
	RecommendedOptionID   string           `json:"recommended_option_id"`
	Override              Override         `json:"override"`
	Candidates             []DecisionOption `json:"candidates,omitempty"`
	CandidatesArchive      []DecisionOption `json:"candidates_archive,omitempty"`
}

// ICPProfile is the denormalized customer-profile payload attached to
// the icp decision, read directly by the sales-motion/ICP fit rules.
type ICPProfile struct {
	CompanySize string `json:"company_size,omitempty"`
	BudgetOwner string `json:"budget_owner,omitempty"`
}

// ICPDecision extends Decision with the profile payload validator
// rules V-SALES-01/V-SALES-02 read.
type ICPDecision struct {
	Decision
	Profile ICPProfile `json:"profile"`
}

// PositioningFrame is the denormalized messaging payload attached to
// the positioning decision.
type PositioningFrame struct {
	ValueProp string `json:"value_prop,omitempty"`
}

// PositioningDecision extends Decision with the frame payload.
type PositioningDecision struct {
	Decision
	Frame PositioningFrame `json:"frame"`
}

// PriceTier is one row of a pricing decision's tier table.
type PriceTier struct {
	Name        string  `json:"name"`
	PriceUSD    float64 `json:"price_usd"`
	Description string  `json:"description"`
}

// PricingDecision extends Decision with pricing-specific fields.
type PricingDecision struct {
	Decision
	Metric       string      `json:"metric"`
	Tiers        []PriceTier `json:"tiers"`
	PriceToTest  float64     `json:"price_to_test"`
}

// ChannelsDecision extends Decision with channel-specific fields.
type ChannelsDecision struct {
	Decision
	Primary         string   `json:"primary"`
	Secondary       string   `json:"secondary"`
	PrimaryChannels []string `json:"primary_channels"`
}

// SalesMotionDecision extends Decision with the motion enum.
type SalesMotionDecision struct {
	Decision
	Motion Motion `json:"motion"`
}

// Decisions holds the five decision slots the spec names: icp,
// positioning, pricing, channels, sales_motion.
type Decisions struct {
	ICP         ICPDecision         `json:"icp"`
	Positioning PositioningDecision `json:"positioning"`
	Pricing     PricingDecision     `json:"pricing"`
	Channels    ChannelsDecision    `json:"channels"`
	SalesMotion SalesMotionDecision `json:"sales_motion"`
}

// Pillar is a grouping label for nodes and a free-form summary.
type Pillar struct {
	Summary string                 `json:"summary"`
	Nodes   []string               `json:"nodes"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// Pillars holds the seven pillar groupings.
type Pillars struct {
	MarketIntelligence  Pillar `json:"market_intelligence"`
	Customer             Pillar `json:"customer"`
	PositioningPricing   Pillar `json:"positioning_pricing"`
	GoToMarket           Pillar `json:"go_to_market"`
	ProductTech          Pillar `json:"product_tech"`
	Execution            Pillar `json:"execution"`
	PeopleAndCash        Pillar `json:"people_and_cash"`
}

// Node is a graph vertex with a stable, dotted semantic ID. Upserted
// by ID, never duplicated.
type Node struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Pillar        string   `json:"pillar"`
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	Assumptions   []string `json:"assumptions,omitempty"`
	EvidenceRefs  []string `json:"evidence_refs,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Status        string   `json:"status"` // "draft" | "final"
	MetaRef
}

// Edge connects two nodes in the graph.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind,omitempty"`
}

// Group is a named subset of node IDs shown together in the UI.
type Group struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	NodeIDs []string `json:"node_ids"`
}

// Graph holds the node/edge/group triple written by the graph-builder agent.
type Graph struct {
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
	Groups []Group `json:"groups"`
}

// Contradiction is a validator finding. RuleID is stable across runs;
// Paths feeds the reconciliation pass's agent attribution.
type Contradiction struct {
	RuleID          string   `json:"rule_id"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	Paths           []string `json:"paths"`
	RecommendedFix  string   `json:"recommended_fix,omitempty"`
}

// Risks is written only by the validator (plus the runtime, for
// override-derived high_risk_flags).
type Risks struct {
	Contradictions           []Contradiction `json:"contradictions"`
	MissingProof             []Contradiction `json:"missing_proof"`
	HighRiskFlags            []Contradiction `json:"high_risk_flags"`
	UnresolvedContradictions []Contradiction `json:"unresolved_contradictions"`
}

// Experiment is a validation plan attached to an assumption.
type Experiment struct {
	Hypothesis string  `json:"hypothesis"`
	Validation string  `json:"validation"`
	Confidence float64 `json:"confidence"`
}

// Execution is written by the execution agent plus the user.
type Execution struct {
	ChosenTrack  string       `json:"chosen_track"` // "unset" until decided
	NextActions  []string     `json:"next_actions"`
	Experiments  []Experiment `json:"experiments"`
	Assets       []string     `json:"assets"`
}

// AgentTiming is one row of the per-agent timing log.
type AgentTiming struct {
	Agent      string `json:"agent"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
	Round      int    `json:"round"` // 0 = initial sweep, 1+ = reconciliation round
}

// TokenSpendByAgent is one row of the per-agent token ledger.
type TokenSpendByAgent struct {
	Agent      string `json:"agent"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
}

// TokenSpend aggregates token usage across the run.
type TokenSpend struct {
	Total   int                 `json:"total"`
	ByAgent []TokenSpendByAgent `json:"by_agent"`
}

// TelemetryError is one row of the runtime's error log, written for
// merge-rule violations (decision_ownership_violation,
// evidence_without_sources, fact_without_source) as well as agent
// failures.
type TelemetryError struct {
	Component  string `json:"component"`
	Code       string `json:"code"`
	Path       string `json:"path,omitempty"`
	Agent      string `json:"agent,omitempty"`
	Message    string `json:"message"`
}

// Telemetry is written by the runtime, never by agents.
type Telemetry struct {
	AgentTimings []AgentTiming    `json:"agent_timings"`
	TokenSpend   TokenSpend       `json:"token_spend"`
	Errors       []TelemetryError `json:"errors"`
}

// CanonicalState is the eleven-section document described in
// spec.md §3. It is schema-validated on every write; unknown
// top-level keys are rejected by ValidateSchema.
type CanonicalState struct {
	Meta        Meta        `json:"meta"`
	Idea        Idea        `json:"idea"`
	Constraints Constraints `json:"constraints"`
	Inputs      Inputs      `json:"inputs"`
	Evidence    Evidence    `json:"evidence"`
	Decisions   Decisions   `json:"decisions"`
	Pillars     Pillars     `json:"pillars"`
	Graph       Graph       `json:"graph"`
	Risks       Risks       `json:"risks"`
	Execution   Execution   `json:"execution"`
	Telemetry   Telemetry   `json:"telemetry"`
}

// TopLevelSections lists every key ValidateSchema accepts.
var TopLevelSections = []string{
	"meta", "idea", "constraints", "inputs", "evidence",
	"decisions", "pillars", "graph", "risks", "execution", "telemetry",
}
