package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/state"
)

// PatchEntry is one field-level difference between two checkpoints,
// identified by its JSON Pointer-style dotted path.
type PatchEntry struct {
	Path   string      `json:"path"`
	Before interface{} `json:"before,omitempty"`
	After  interface{} `json:"after,omitempty"`
}

// Diff loads checkpoints a and b for runID and returns the ordered
// list of leaf-level differences between them, used by the API and
// reconciliation pass to show a user what changed since their last
// decision.
func (s *Store) Diff(ctx context.Context, runID string, a, b int64) ([]PatchEntry, error) {
	before, err := s.Get(ctx, runID, a)
	if err != nil {
		return nil, err
	}
	after, err := s.Get(ctx, runID, b)
	if err != nil {
		return nil, err
	}
	return DiffStates(before, after)
}

// DiffStates computes the ordered leaf-level differences between two
// CanonicalState values.
func DiffStates(before, after *state.CanonicalState) ([]PatchEntry, error) {
	beforeMap, err := toGenericMap(before)
	if err != nil {
		return nil, core.ErrInternal("DIFF_MARSHAL_FAILED", "marshaling before state").WithCause(err)
	}
	afterMap, err := toGenericMap(after)
	if err != nil {
		return nil, core.ErrInternal("DIFF_MARSHAL_FAILED", "marshaling after state").WithCause(err)
	}

	var entries []PatchEntry
	diffValue("", beforeMap, afterMap, &entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func toGenericMap(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffValue(path string, before, after interface{}, entries *[]PatchEntry) {
	if reflect.DeepEqual(before, after) {
		return
	}

	beforeMap, beforeIsMap := before.(map[string]interface{})
	afterMap, afterIsMap := after.(map[string]interface{})
	if beforeIsMap && afterIsMap {
		keys := map[string]bool{}
		for k := range beforeMap {
			keys[k] = true
		}
		for k := range afterMap {
			keys[k] = true
		}
		for k := range keys {
			diffValue(joinPath(path, k), beforeMap[k], afterMap[k], entries)
		}
		return
	}

	*entries = append(*entries, PatchEntry{Path: path, Before: before, After: after})
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return fmt.Sprintf("%s.%s", base, key)
}
