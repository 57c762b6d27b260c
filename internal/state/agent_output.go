package state

// PatchOp is the JSON Patch-like operation a Patch carries.
type PatchOp string

const (
	PatchAdd     PatchOp = "add"
	PatchReplace PatchOp = "replace"
	PatchRemove  PatchOp = "remove"
)

// Patch is one write an agent wants applied to CanonicalState, at a
// JSON Pointer path, carrying its own provenance.
type Patch struct {
	Op    PatchOp     `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
	Meta  PatchMeta   `json:"meta,omitempty"`
}

// PatchMeta is the provenance envelope a patch's value carries.
type PatchMeta struct {
	SourceType SourceType `json:"source_type,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Sources    []string   `json:"sources,omitempty"`
}

// Proposal contributes candidate options to a decision slot. Only the
// runtime may later promote one of Options to SelectedOptionID.
type Proposal struct {
	DecisionKey          string           `json:"decision_key"`
	Options               []DecisionOption `json:"options"`
	RecommendedOptionID   string           `json:"recommended_option_id"`
}

// Fact is a claim an agent asserts with optional supporting sources.
// A fact without sources is recorded as a fact_without_source
// telemetry error and a missing_proof entry (V-EVID-FACT-01); the
// claim itself is not stored in the state.
type Fact struct {
	Claim             string   `json:"claim"`
	Confidence        float64  `json:"confidence"`
	SupportingSources []string `json:"supporting_sources"`
}

// Assumption is an unverified statement with a suggested validation path.
type Assumption struct {
	Statement      string  `json:"statement"`
	HowToValidate  string  `json:"how_to_validate"`
	Confidence     float64 `json:"confidence"`
}

// NodeAction is a graph-node upsert instruction.
type NodeAction string

const (
	NodeActionCreate   NodeAction = "create"
	NodeActionUpdate   NodeAction = "update"
	NodeActionFinalize NodeAction = "finalize"
)

// NodeUpdate instructs the merge engine to create, update, or finalize
// one graph node by its stable semantic ID.
type NodeUpdate struct {
	NodeID  string     `json:"node_id"`
	Action  NodeAction `json:"action"`
	Payload Node       `json:"payload"`
}

// AgentOutput is the structured diff one agent invocation returns.
// The merge engine is the only consumer that ever applies it to
// CanonicalState.
type AgentOutput struct {
	Agent           string       `json:"agent"`
	RunID           string       `json:"run_id"`
	ProducedAt      string       `json:"produced_at"`
	Patches         []Patch      `json:"patches"`
	Proposals       []Proposal   `json:"proposals"`
	Facts           []Fact       `json:"facts"`
	Assumptions     []Assumption `json:"assumptions"`
	Risks           []Contradiction `json:"risks"`
	RequiredInputs  []string     `json:"required_inputs"`
	NodeUpdates     []NodeUpdate `json:"node_updates"`
}
