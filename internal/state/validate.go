package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gtmcore/orchestrator/internal/core"
)

// ValidateSchema rejects any top-level key outside TopLevelSections,
// matching canonical_state.schema.json's additionalProperties: false
// at the document root. It does not (yet) walk nested objects; those
// are enforced by the Go struct shape at unmarshal time.
func ValidateSchema(raw []byte) error {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return core.ErrInput("MALFORMED_JSON", fmt.Sprintf("state is not a JSON object: %v", err))
	}

	allowed := make(map[string]struct{}, len(TopLevelSections))
	for _, k := range TopLevelSections {
		allowed[k] = struct{}{}
	}

	var unknown []string
	for k := range generic {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return core.ErrInput("UNKNOWN_TOP_LEVEL_KEY",
			fmt.Sprintf("canonical state has unknown top-level key(s): %v", unknown))
	}
	return nil
}
