package agent

import (
	"encoding/json"
	"strings"

	"github.com/gtmcore/orchestrator/internal/core"
)

// extractJSON trims a markdown code fence a model sometimes wraps its
// JSON response in, then validates the result is well-formed JSON.
func extractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if !json.Valid([]byte(trimmed)) {
		return nil, core.ErrProvider("NON_JSON_RESPONSE", "model response was not valid JSON")
	}
	return []byte(trimmed), nil
}
