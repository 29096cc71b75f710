package automation

import (
	"encoding/json"
	"fmt"
)

// Normalize returns v decoded from its own JSON encoding: numbers become
// float64, slices []any and maps map[string]any. Values stored by any
// repository read back in this shape.
func Normalize[T any](entity, id string, v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, NewValidationError(entity, id, fmt.Sprintf("value is not serializable: %v", err))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, NewValidationError(entity, id, fmt.Sprintf("value is not serializable: %v", err))
	}
	return out, nil
}
