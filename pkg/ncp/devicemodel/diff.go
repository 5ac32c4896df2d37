package devicemodel

import (
	"encoding/json"
	"fmt"
	"sort"

	jsonpatch "github.com/evanphx/json-patch"
)

// changedProperties reports which top-level keys differ between before and
// after, computed via a JSON merge patch diff (RFC 7396) rather than a
// field-by-field Go comparison, so nested structured values (touchpoints,
// descriptor-shaped properties) are compared by their wire representation
// instead of requiring every call site to know how to deep-equal them.
func changedProperties(before, after map[string]any) ([]string, error) {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("marshaling prior property set: %w", err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("marshaling proposed property set: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(beforeJSON, afterJSON)
	if err != nil {
		return nil, fmt.Errorf("diffing property sets: %w", err)
	}
	var diff map[string]json.RawMessage
	if err := json.Unmarshal(patch, &diff); err != nil {
		return nil, fmt.Errorf("decoding property diff: %w", err)
	}
	names := make([]string, 0, len(diff))
	for name := range diff {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
