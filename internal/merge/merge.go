// Package merge implements the deterministic state merge engine: the
// pure function that applies one or more AgentOutput payloads onto a
// CanonicalState document under the six ordered merge rules.
package merge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/gtmcore/orchestrator/internal/state"
)

// patchOrder fixes the section precedence patches are applied in:
// evidence first (nothing downstream depends on anything but
// evidence), then decisions, pillars, graph, execution, telemetry
// last (runtime-owned bookkeeping).
var patchOrder = []string{
	"/evidence", "/decisions", "/pillars", "/graph", "/execution", "/telemetry",
}

// Warning is a non-fatal merge-rule violation surfaced to the caller
// in addition to being recorded under telemetry.errors.
type Warning struct {
	Code    string
	Message string
	Path    string
	Agent   string
}

// Result carries everything about a merge pass the caller needs
// beyond the merged state itself: warnings raised along the way, and
// the graph node IDs that were newly created versus updated, so the
// scheduler can publish node_created/node_updated without re-diffing
// the whole graph itself.
type Result struct {
	Warnings     []Warning
	NodesCreated []string
	NodesUpdated []string
}

// criticalPrefixes are decision paths whose loss of provenance is
// worth flagging even when the write itself is allowed.
var criticalPrefixes = []string{
	"/decisions/icp", "/decisions/pricing", "/decisions/channels", "/decisions/sales_motion",
}

func isCriticalPath(path string) bool {
	for _, p := range criticalPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isDecisionSelectionPath(path string) bool {
	return strings.HasPrefix(path, "/decisions/") && strings.HasSuffix(path, "/selected_option_id")
}

func patchRank(path string) int {
	for i, prefix := range patchOrder {
		if strings.HasPrefix(path, prefix) {
			return i
		}
	}
	return len(patchOrder)
}

// Apply merges outputs into s, in the order given, returning the new
// state and any warnings raised along the way. s is never mutated;
// Apply always works from a deep copy.
func Apply(s *state.CanonicalState, outputs []state.AgentOutput) (*state.CanonicalState, Result, error) {
	raw, err := s.DeepCopy().ToJSON()
	if err != nil {
		return nil, Result{}, fmt.Errorf("merge: marshal base state: %w", err)
	}

	originalNodeIDs := map[string]bool{}
	for _, n := range s.Graph.Nodes {
		originalNodeIDs[n.ID] = true
	}

	var warnings []Warning
	var touchedNodeIDs []string

	for _, out := range outputs {
		raw, err = ingestFactsAndAssumptions(raw, out)
		if err != nil {
			return nil, Result{}, err
		}
		raw, err = applyProposals(raw, out.Proposals)
		if err != nil {
			return nil, Result{}, err
		}
		var nodeTouched []string
		raw, nodeTouched, err = applyNodeUpdates(raw, out.NodeUpdates)
		if err != nil {
			return nil, Result{}, err
		}
		touchedNodeIDs = append(touchedNodeIDs, nodeTouched...)
		raw, err = appendAgentRisks(raw, out.Risks)
		if err != nil {
			return nil, Result{}, err
		}
		raw, err = appendRequiredInputs(raw, out.RequiredInputs)
		if err != nil {
			return nil, Result{}, err
		}
	}

	type ranked struct {
		agent string
		patch state.Patch
	}
	var all []ranked
	for _, out := range outputs {
		for _, p := range out.Patches {
			all = append(all, ranked{agent: out.Agent, patch: p})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return patchRank(all[i].patch.Path) < patchRank(all[j].patch.Path)
	})

	type seenEntry struct {
		value interface{}
		meta  state.PatchMeta
	}
	seen := map[string]seenEntry{}

	for _, item := range all {
		agent := item.agent
		patch := item.patch
		path := patch.Path
		value := patch.Value
		meta := patch.Meta

		if isDecisionSelectionPath(path) && agent != "orchestrator" {
			warnings = append(warnings, Warning{
				Code:    "decision_ownership_violation",
				Message: "only the orchestrator can set selected_option_id",
				Path:    path,
				Agent:   agent,
			})
			raw, err = appendTelemetryError(raw, state.TelemetryError{
				Component: "merge",
				Code:      "decision_ownership_violation",
				Path:      path,
				Agent:     agent,
				Message:   "only orchestrator can write decisions.*.selected_option_id",
			})
			if err != nil {
				return nil, Result{}, err
			}
			continue
		}

		if meta.SourceType == state.SourceEvidence && len(meta.Sources) == 0 {
			meta.SourceType = state.SourceAssumption
			if meta.Confidence == 0 {
				meta.Confidence = 0.6
			}
			meta.Confidence = minFloat(meta.Confidence, 0.6)
			warnings = append(warnings, Warning{
				Code:    "evidence_without_sources",
				Message: "evidence claim without sources converted to assumption",
				Path:    path,
				Agent:   agent,
			})
			raw, err = appendTelemetryError(raw, state.TelemetryError{
				Component: "merge",
				Code:      "evidence_without_sources",
				Path:      path,
				Agent:     agent,
				Message:   "evidence claim without sources converted to assumption",
			})
			if err != nil {
				return nil, Result{}, err
			}
			if isCriticalPath(path) {
				raw, err = appendMissingProof(raw, state.Contradiction{
					RuleID:   "V-EVID-FACT-01",
					Severity: state.SeverityHigh,
					Message:  "critical decision updated without evidence sources",
					Paths:    []string{path},
				})
				if err != nil {
					return nil, Result{}, err
				}
			}
		}

		switch {
		case strings.HasPrefix(path, "/evidence/sources"):
			raw, err = mergeEvidenceSources(raw, value)
			if err != nil {
				return nil, Result{}, err
			}
			seen[path] = seenEntry{value: value, meta: meta}
			continue
		case strings.HasPrefix(path, "/graph/nodes"):
			var nodeTouched []string
			raw, nodeTouched, err = upsertGraphNodes(raw, value)
			if err != nil {
				return nil, Result{}, err
			}
			touchedNodeIDs = append(touchedNodeIDs, nodeTouched...)
			seen[path] = seenEntry{value: value, meta: meta}
			continue
		case strings.HasPrefix(path, "/graph/groups"):
			raw, err = mergeGraphGroups(raw, value)
			if err != nil {
				return nil, Result{}, err
			}
			seen[path] = seenEntry{value: value, meta: meta}
			continue
		}

		if prev, ok := seen[path]; ok && !valuesEqual(prev.value, value) {
			outcome := resolveConflict(path, prev.value, prev.meta, value, meta)
			if outcome.contradiction != nil {
				raw, err = appendContradiction(raw, *outcome.contradiction)
				if err != nil {
					return nil, Result{}, err
				}
			}
			if outcome.noWinner {
				if key, ok := decisionKeyFromPath(path); ok {
					raw, err = appendDecisionCandidate(raw, key, "candidates", prev.value)
					if err != nil {
						return nil, Result{}, err
					}
					raw, err = appendDecisionCandidate(raw, key, "candidates", value)
					if err != nil {
						return nil, Result{}, err
					}
					// The first write was already applied; clear it so
					// neither candidate stands as the value.
					raw, err = state.SetPath(raw, state.PatchRemove, path, nil)
					if err != nil {
						return nil, Result{}, fmt.Errorf("merge: clear contested path %s: %w", path, err)
					}
				}
				continue
			}
			value = outcome.value
			if outcome.archivedLoser != nil {
				if key, ok := decisionKeyFromPath(path); ok {
					raw, err = appendDecisionCandidate(raw, key, "candidates_archive", outcome.archivedLoser)
					if err != nil {
						return nil, Result{}, err
					}
				}
			}
		}

		raw, err = state.SetPath(raw, patch.Op, path, value)
		if err != nil {
			return nil, Result{}, fmt.Errorf("merge: apply patch %s from %s: %w", path, agent, err)
		}
		seen[path] = seenEntry{value: value, meta: meta}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	raw, err = sjson.SetBytes(raw, "meta.updated_by", "orchestrator")
	if err != nil {
		return nil, Result{}, err
	}
	raw, err = sjson.SetBytes(raw, "meta.updated_at", now)
	if err != nil {
		return nil, Result{}, err
	}

	merged, err := state.FromJSON(raw)
	if err != nil {
		return nil, Result{}, fmt.Errorf("merge: result fails schema validation: %w", err)
	}

	var created, updated []string
	seenTouched := map[string]bool{}
	for _, id := range touchedNodeIDs {
		if seenTouched[id] {
			continue
		}
		seenTouched[id] = true
		if originalNodeIDs[id] {
			updated = append(updated, id)
		} else {
			created = append(created, id)
		}
	}
	sort.Strings(created)
	sort.Strings(updated)

	return merged, Result{Warnings: warnings, NodesCreated: created, NodesUpdated: updated}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func valuesEqual(a, b interface{}) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

func appendTelemetryError(raw []byte, e state.TelemetryError) ([]byte, error) {
	return appendArray(raw, "telemetry.errors", e)
}

func appendMissingProof(raw []byte, c state.Contradiction) ([]byte, error) {
	return appendArray(raw, "risks.missing_proof", c)
}

func appendContradiction(raw []byte, c state.Contradiction) ([]byte, error) {
	return appendArray(raw, "risks.contradictions", c)
}

func appendArray(raw []byte, gpath string, item interface{}) ([]byte, error) {
	encoded, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, gpath+".-1", encoded)
}

// conflictOutcome is what resolveConflict decided for one contested
// path: either a winning value (optionally with the loser to archive),
// or noWinner when neither side should be written and both candidates
// must be preserved side by side instead.
type conflictOutcome struct {
	value         interface{}
	noWinner      bool
	archivedLoser interface{}
	contradiction *state.Contradiction
}

// resolveConflict implements merge rule 5 on conflicting writes to the
// same path within one merge pass. Evidence beats inference/assumption
// outright. Two conflicting evidence writes pick no winner at all: both
// values are preserved as decision candidates and V-EVID-CONFLICT is
// raised for the user to settle. Otherwise (inference vs. inference,
// assumption vs. assumption, or a mix of the two) the higher-confidence
// value wins and the loser is archived rather than discarded.
func resolveConflict(path string, firstVal interface{}, firstMeta state.PatchMeta, secondVal interface{}, secondMeta state.PatchMeta) conflictOutcome {
	firstEvidence := firstMeta.SourceType == state.SourceEvidence
	secondEvidence := secondMeta.SourceType == state.SourceEvidence

	if firstEvidence && !secondEvidence {
		return conflictOutcome{value: firstVal}
	}
	if secondEvidence && !firstEvidence {
		return conflictOutcome{value: secondVal}
	}
	if firstEvidence && secondEvidence {
		return conflictOutcome{
			noWinner: true,
			contradiction: &state.Contradiction{
				RuleID:         "V-EVID-CONFLICT",
				Severity:       state.SeverityHigh,
				Message:        "conflicting evidence updates require user validation",
				Paths:          []string{path},
				RecommendedFix: "review alternatives and choose one candidate",
			},
		}
	}

	chosen, loser := firstVal, secondVal
	if secondMeta.Confidence > firstMeta.Confidence {
		chosen, loser = secondVal, firstVal
	}
	return conflictOutcome{value: chosen, archivedLoser: loser}
}

// decisionKeyFromPath extracts the decision slot key from a
// "/decisions/<key>/..." JSON Pointer path, the only paths that carry
// a candidates/candidates_archive sidecar.
func decisionKeyFromPath(path string) (string, bool) {
	const prefix = "/decisions/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	idx := strings.Index(rest, "/")
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

// asDecisionCandidate wraps an arbitrary conflicting value as a
// DecisionOption so it can live in a Decision's Candidates/
// CandidatesArchive slice regardless of the field's own value type.
func asDecisionCandidate(value interface{}) state.DecisionOption {
	if s, ok := value.(string); ok {
		return state.DecisionOption{ID: s}
	}
	return state.DecisionOption{ID: fmt.Sprintf("%v", value), Data: map[string]interface{}{"value": value}}
}

// appendDecisionCandidate appends value, wrapped as a DecisionOption,
// to decisions.<key>.<field> ("candidates" or "candidates_archive").
func appendDecisionCandidate(raw []byte, key, field string, value interface{}) ([]byte, error) {
	return appendArray(raw, "decisions."+key+"."+field, asDecisionCandidate(value))
}

// mergeEvidenceSources dedups incoming sources against existing ones
// by canonical URL, unioning snippets and keeping the max quality score.
func mergeEvidenceSources(raw []byte, value interface{}) ([]byte, error) {
	existing := gjson.GetBytes(raw, "evidence.sources")
	var existingSources []state.Source
	if existing.Exists() {
		if err := json.Unmarshal([]byte(existing.Raw), &existingSources); err != nil {
			return nil, fmt.Errorf("merge: decode existing sources: %w", err)
		}
	}

	incoming, err := asSources(value)
	if err != nil {
		return nil, err
	}

	merged := dedupeSources(append(existingSources, incoming...))
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, "evidence.sources", encoded)
}

func asSources(value interface{}) ([]state.Source, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var list []state.Source
	trimmed := strings.TrimSpace(string(encoded))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(encoded, &list); err != nil {
			return nil, fmt.Errorf("merge: decode incoming sources: %w", err)
		}
		return list, nil
	}
	var one state.Source
	if err := json.Unmarshal(encoded, &one); err != nil {
		return nil, fmt.Errorf("merge: decode incoming source: %w", err)
	}
	return []state.Source{one}, nil
}

// canonicalURL lowercases the host, strips a trailing slash, and
// drops common tracking query parameters.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		q := u.Query()
		for _, tracking := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid", "ref"} {
			q.Del(tracking)
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment = ""
	return u.String()
}

func dedupeSources(sources []state.Source) []state.Source {
	byURL := map[string]*state.Source{}
	var order []string
	for i := range sources {
		src := sources[i]
		key := canonicalURL(src.URL)
		src.CanonicalURL = key
		if existing, ok := byURL[key]; ok {
			existing.Snippets = unionStrings(existing.Snippets, src.Snippets)
			if src.QualityScore > existing.QualityScore {
				existing.QualityScore = src.QualityScore
			}
			continue
		}
		cp := src
		byURL[key] = &cp
		order = append(order, key)
	}
	out := make([]state.Source, 0, len(order))
	for _, k := range order {
		out = append(out, *byURL[k])
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// upsertGraphNodes implements merge rule 6 for bulk node writes:
// resolve by node_id, treat create as update-if-exists, and preserve
// UpdatedAt when the incoming node is an exact signature match
// (nothing observable changed).
func upsertGraphNodes(raw []byte, value interface{}) ([]byte, []string, error) {
	existingRes := gjson.GetBytes(raw, "graph.nodes")
	var existing []state.Node
	if existingRes.Exists() {
		if err := json.Unmarshal([]byte(existingRes.Raw), &existing); err != nil {
			return nil, nil, fmt.Errorf("merge: decode existing nodes: %w", err)
		}
	}
	incoming, err := asNodes(value)
	if err != nil {
		return nil, nil, err
	}

	byID := map[string]state.Node{}
	for _, n := range existing {
		if n.ID != "" {
			byID[n.ID] = n
		}
	}
	var touched []string
	for _, n := range incoming {
		if n.ID == "" {
			continue
		}
		if prior, ok := byID[n.ID]; ok && nodeSignature(prior) == nodeSignature(n) {
			n.UpdatedAt = prior.UpdatedAt
		}
		if prior, ok := byID[n.ID]; ok && prior.Status == "final" {
			// Finalized nodes are frozen against non-override writes;
			// node_updates from agents never carry an override flag,
			// so a finalized node simply keeps its prior payload.
			continue
		}
		byID[n.ID] = n
		touched = append(touched, n.ID)
	}

	merged := make([]state.Node, 0, len(byID))
	for _, n := range byID {
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, nil, err
	}
	out, err := sjson.SetRawBytes(raw, "graph.nodes", encoded)
	if err != nil {
		return nil, nil, err
	}
	return out, touched, nil
}

func asNodes(value interface{}) ([]state.Node, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var list []state.Node
	trimmed := strings.TrimSpace(string(encoded))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(encoded, &list); err != nil {
			return nil, fmt.Errorf("merge: decode incoming nodes: %w", err)
		}
		return list, nil
	}
	var one state.Node
	if err := json.Unmarshal(encoded, &one); err != nil {
		return nil, fmt.Errorf("merge: decode incoming node: %w", err)
	}
	return []state.Node{one}, nil
}

func nodeSignature(n state.Node) string {
	encoded, _ := json.Marshal(struct {
		Title        string
		Pillar       string
		Type         string
		Content      string
		Assumptions  []string
		EvidenceRefs []string
		Dependencies []string
		Status       string
	}{n.Title, n.Pillar, n.Type, n.Content, n.Assumptions, n.EvidenceRefs, n.Dependencies, n.Status})
	return string(encoded)
}

func mergeGraphGroups(raw []byte, value interface{}) ([]byte, error) {
	existingRes := gjson.GetBytes(raw, "graph.groups")
	var existing []state.Group
	if existingRes.Exists() {
		if err := json.Unmarshal([]byte(existingRes.Raw), &existing); err != nil {
			return nil, fmt.Errorf("merge: decode existing groups: %w", err)
		}
	}
	incoming, err := asGroups(value)
	if err != nil {
		return nil, err
	}

	byID := map[string]state.Group{}
	for _, g := range existing {
		if g.ID != "" {
			byID[g.ID] = g
		}
	}
	for _, g := range incoming {
		if g.ID == "" {
			continue
		}
		g.NodeIDs = dedupeOrdered(g.NodeIDs)
		byID[g.ID] = g
	}

	merged := make([]state.Group, 0, len(byID))
	for _, g := range byID {
		merged = append(merged, g)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, "graph.groups", encoded)
}

func asGroups(value interface{}) ([]state.Group, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var list []state.Group
	trimmed := strings.TrimSpace(string(encoded))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(encoded, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one state.Group
	if err := json.Unmarshal(encoded, &one); err != nil {
		return nil, err
	}
	return []state.Group{one}, nil
}

func dedupeOrdered(ids []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ingestFactsAndAssumptions implements the "facts without sources are
// downgraded" half of rule 4, plus folding assumptions into
// execution.experiments (deduped by exact value).
func ingestFactsAndAssumptions(raw []byte, out state.AgentOutput) ([]byte, error) {
	var err error
	for _, fact := range out.Facts {
		if len(fact.SupportingSources) > 0 {
			continue
		}
		confidence := fact.Confidence
		if confidence == 0 {
			confidence = 0.6
		}
		raw, err = appendTelemetryError(raw, state.TelemetryError{
			Component: "merge",
			Code:      "fact_without_source",
			Agent:     out.Agent,
			Message:   fmt.Sprintf("fact %q downgraded to assumption", fact.Claim),
		})
		if err != nil {
			return nil, err
		}
		raw, err = appendMissingProof(raw, state.Contradiction{
			RuleID:   "V-EVID-FACT-01",
			Severity: state.SeverityHigh,
			Message:  "fact claim without source was downgraded to assumption",
			Paths:    []string{"/facts"},
		})
		if err != nil {
			return nil, err
		}
	}

	existingRes := gjson.GetBytes(raw, "execution.experiments")
	var experiments []state.Experiment
	if existingRes.Exists() {
		if err := json.Unmarshal([]byte(existingRes.Raw), &experiments); err != nil {
			return nil, err
		}
	}
	for _, a := range out.Assumptions {
		exp := state.Experiment{Hypothesis: a.Statement, Validation: a.HowToValidate, Confidence: a.Confidence}
		if !containsExperiment(experiments, exp) {
			experiments = append(experiments, exp)
		}
	}
	encoded, err := json.Marshal(experiments)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, "execution.experiments", encoded)
}

func containsExperiment(list []state.Experiment, target state.Experiment) bool {
	for _, e := range list {
		if e == target {
			return true
		}
	}
	return false
}

// applyNodeUpdates folds an agent's node_updates into graph.nodes,
// applying the same upsert-by-ID and signature-preservation logic as
// bulk /graph/nodes patches. finalize freezes the node against further
// non-override writes.
func applyNodeUpdates(raw []byte, updates []state.NodeUpdate) ([]byte, []string, error) {
	if len(updates) == 0 {
		return raw, nil, nil
	}
	nodes := make([]state.Node, 0, len(updates))
	for _, u := range updates {
		n := u.Payload
		n.ID = u.NodeID
		if u.Action == state.NodeActionFinalize {
			n.Status = "final"
		}
		nodes = append(nodes, n)
	}
	return upsertGraphNodes(raw, nodes)
}

// appendAgentRisks folds contradictions an agent itself surfaced into
// risks.contradictions, same shape the validator uses.
func appendAgentRisks(raw []byte, risks []state.Contradiction) ([]byte, error) {
	var err error
	for _, r := range risks {
		raw, err = appendContradiction(raw, r)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// appendRequiredInputs folds an agent's required_inputs into
// inputs.open_questions, deduped against what is already there.
func appendRequiredInputs(raw []byte, required []string) ([]byte, error) {
	if len(required) == 0 {
		return raw, nil
	}
	existingRes := gjson.GetBytes(raw, "inputs.open_questions")
	var existing []string
	if existingRes.Exists() {
		if err := json.Unmarshal([]byte(existingRes.Raw), &existing); err != nil {
			return nil, err
		}
	}
	merged := dedupeOrdered(append(existing, required...))
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(raw, "inputs.open_questions", encoded)
}

// applyProposals turns proposals into options[] + recommended_option_id
// on their decision slot (merge rule 3's agent-facing half).
func applyProposals(raw []byte, proposals []state.Proposal) ([]byte, error) {
	var err error
	for _, p := range proposals {
		base := "decisions." + p.DecisionKey
		if !gjson.GetBytes(raw, base).Exists() {
			continue
		}
		optionsJSON, merr := json.Marshal(p.Options)
		if merr != nil {
			return nil, merr
		}
		raw, err = sjson.SetRawBytes(raw, base+".options", optionsJSON)
		if err != nil {
			return nil, err
		}
		raw, err = sjson.SetBytes(raw, base+".recommended_option_id", p.RecommendedOptionID)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}
