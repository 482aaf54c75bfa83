package utils

import (
	"fmt"
	"sort"
)

// NormalizeValue converts values for deterministic serialization:
// - maps are rewritten with keys in sorted order (recursively)
// - slices are normalized element-wise
// - integer kinds collapse to int64, floats to float64
// Deterministic output keeps hashes of equivalent structures identical.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		normalized := make(map[string]interface{}, len(v))
		for _, k := range keys {
			normalized[k] = NormalizeValue(v[k])
		}
		return normalized
	case []interface{}:
		normalized := make([]interface{}, len(v))
		for i, item := range v {
			normalized[i] = NormalizeValue(item)
		}
		return normalized
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case string, bool, nil:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
