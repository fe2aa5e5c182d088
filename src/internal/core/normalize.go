// FILE: logveil/src/internal/core/normalize.go
package core

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Normalize maps an arbitrary value into the closed shape set used by
// event attributes: nil, bool, int64, float64, string, []any, or
// map[string]any. It never fails; unsupported types degrade to their
// printed form.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case string:
		return t
	case int64:
		return t
	case float64:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case float32:
		return float64(t)
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case time.Duration:
		return t.String()
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = Normalize(elem)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = elem
		}
		return out
	case map[string]any:
		return NormalizeAttrs(t)
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeAttrs returns a fresh map with every value normalized. The
// input map is never mutated.
func NormalizeAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = Normalize(v)
	}
	return out
}

// EstimateSize approximates the encoded byte length of a normalized
// value. It feeds metrics averages, not wire accounting.
func EstimateSize(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 4
	case bool:
		if t {
			return 4
		}
		return 5
	case int64:
		return int64(len(strconv.FormatInt(t, 10)))
	case float64:
		return int64(len(strconv.FormatFloat(t, 'g', -1, 64)))
	case string:
		return int64(len(t)) + 2
	case []any:
		n := int64(2)
		for _, elem := range t {
			n += EstimateSize(elem) + 1
		}
		return n
	case map[string]any:
		n := int64(2)
		for k, elem := range t {
			n += int64(len(k)) + 3 + EstimateSize(elem) + 1
		}
		return n
	default:
		return int64(len(fmt.Sprint(t)))
	}
}
