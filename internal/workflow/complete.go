package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Missing returns the keys from required whose value in formData is not
// populated. A value is populated unless it is absent, null, a blank string,
// false, or an empty array or object.
func Missing(formData json.RawMessage, required []string) ([]string, error) {
	fields := map[string]json.RawMessage{}
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &fields); err != nil {
			return nil, fmt.Errorf("%w: formData: %v", ErrInvalidInput, err)
		}
	}

	var missing []string
	for _, key := range required {
		raw, ok := fields[key]
		if !ok || !populated(raw) {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

func populated(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
