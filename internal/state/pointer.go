package state

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DeepCopy round-trips s through JSON to produce an independent copy.
// Agents receive a DeepCopy of the current state; they can never
// observe or mutate the scheduler's live value.
func (s *CanonicalState) DeepCopy() *CanonicalState {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("state: marshal during deep copy: %v", err))
	}
	var out CanonicalState
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("state: unmarshal during deep copy: %v", err))
	}
	return &out
}

// ToJSON serializes the state.
func (s *CanonicalState) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON deserializes a CanonicalState, validating that no unknown
// top-level key is present.
func FromJSON(raw []byte) (*CanonicalState, error) {
	if err := ValidateSchema(raw); err != nil {
		return nil, err
	}
	var s CanonicalState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("state: unmarshal: %w", err)
	}
	return &s, nil
}

// jsonPointerToGJSON converts an RFC 6901 JSON Pointer ("/decisions/pricing/metric")
// into the dotted path gjson/sjson expect ("decisions.pricing.metric"),
// escaping dots and unescaping "~1"/"~0" per the pointer spec.
func jsonPointerToGJSON(pointer string) (string, error) {
	if pointer == "" || pointer[0] != '/' {
		return "", fmt.Errorf("state: invalid json pointer %q", pointer)
	}
	segments := splitPointer(pointer)
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = escapeGJSONSegment(seg)
	}
	return joinDotted(out), nil
}

func splitPointer(pointer string) []string {
	var segments []string
	var cur []byte
	for i := 1; i < len(pointer); i++ {
		c := pointer[i]
		if c == '/' {
			segments = append(segments, unescapePointerSegment(string(cur)))
			cur = cur[:0]
			continue
		}
		cur = append(cur, c)
	}
	segments = append(segments, unescapePointerSegment(string(cur)))
	return segments
}

func unescapePointerSegment(seg string) string {
	out := make([]byte, 0, len(seg))
	for i := 0; i < len(seg); i++ {
		if seg[i] == '~' && i+1 < len(seg) {
			switch seg[i+1] {
			case '1':
				out = append(out, '/')
				i++
				continue
			case '0':
				out = append(out, '~')
				i++
				continue
			}
		}
		out = append(out, seg[i])
	}
	return string(out)
}

func escapeGJSONSegment(seg string) string {
	out := make([]byte, 0, len(seg))
	for i := 0; i < len(seg); i++ {
		if seg[i] == '.' || seg[i] == '*' || seg[i] == '?' {
			out = append(out, '\\')
		}
		out = append(out, seg[i])
	}
	return string(out)
}

func joinDotted(segments []string) string {
	out := ""
	for i, seg := range segments {
		if i > 0 {
			out += "."
		}
		out += seg
	}
	return out
}

// GetPath reads the value at a JSON Pointer path from raw JSON.
func GetPath(raw []byte, pointer string) (gjson.Result, error) {
	path, err := jsonPointerToGJSON(pointer)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(raw, path), nil
}

// SetPath applies one add/replace/remove operation at a JSON Pointer
// path against raw JSON, returning the updated document. Intermediate
// containers are created as needed, matching the original merge
// engine's _ensure_container behavior.
func SetPath(raw []byte, op PatchOp, pointer string, value interface{}) ([]byte, error) {
	path, err := jsonPointerToGJSON(pointer)
	if err != nil {
		return nil, err
	}
	switch op {
	case PatchAdd, PatchReplace:
		return sjson.SetBytes(raw, path, value)
	case PatchRemove:
		return sjson.DeleteBytes(raw, path)
	default:
		return nil, fmt.Errorf("state: unsupported patch op %q", op)
	}
}
