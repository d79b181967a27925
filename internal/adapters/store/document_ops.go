package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sidequest/backend/internal/domain/providers"
)

// ApplyUpdates applies field updates to a document body in place.
// Dotted paths address nested maps.
func ApplyUpdates(data map[string]interface{}, updates []providers.FieldUpdate) error {
	for _, u := range updates {
		parent, key, err := resolvePath(data, u.Path)
		if err != nil {
			return err
		}

		switch u.Kind {
		case providers.UpdateSet:
			parent[key] = CloneValue(u.Value)
		case providers.UpdateArrayUnion:
			current := toSlice(parent[key])
			for _, v := range toSlice(u.Value) {
				if !containsValue(current, v) {
					current = append(current, CloneValue(v))
				}
			}
			parent[key] = current
		case providers.UpdateArrayRemove:
			remove := toSlice(u.Value)
			current := toSlice(parent[key])
			kept := make([]interface{}, 0, len(current))
			for _, v := range current {
				if !containsValue(remove, v) {
					kept = append(kept, v)
				}
			}
			parent[key] = kept
		case providers.UpdateMax:
			raised, err := maxNumber(parent[key], u.Value)
			if err != nil {
				return fmt.Errorf("max %s: %w", u.Path, err)
			}
			parent[key] = raised
		default:
			return fmt.Errorf("unsupported update kind %d on %s", u.Kind, u.Path)
		}
	}
	return nil
}

// MatchesFilters reports whether a document satisfies every filter
func MatchesFilters(doc *providers.Document, filters []providers.Filter) bool {
	for _, f := range filters {
		var value interface{}
		if f.Field == providers.FieldDocumentID {
			value = doc.ID
		} else {
			value = lookupPath(doc.Data, f.Field)
		}

		switch f.Op {
		case providers.OpEqual:
			if !valuesEqual(value, f.Value) {
				return false
			}
		case providers.OpIn:
			if !containsValue(toSlice(f.Value), value) {
				return false
			}
		case providers.OpNotIn:
			if value == nil || containsValue(toSlice(f.Value), value) {
				return false
			}
		case providers.OpArrayContains:
			if !containsValue(toSlice(value), f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// CloneValue deep-copies maps and slices so stored documents never alias caller data
func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// CloneData deep-copies a document body
func CloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return CloneValue(data).(map[string]interface{})
}

func resolvePath(data map[string]interface{}, path string) (map[string]interface{}, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("empty field path")
	}
	parts := strings.Split(path, ".")
	current := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := current[p].(map[string]interface{})
		if !ok {
			if current[p] != nil {
				return nil, "", fmt.Errorf("field %s is not a map", p)
			}
			next = map[string]interface{}{}
			current[p] = next
		}
		current = next
	}
	return current, parts[len(parts)-1], nil
}

func lookupPath(data map[string]interface{}, path string) interface{} {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, p := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[p]
	}
	return current
}

func toSlice(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return append([]interface{}{}, t...)
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			out := make([]interface{}, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out[i] = rv.Index(i).Interface()
			}
			return out
		}
		return []interface{}{v}
	}
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// maxNumber returns current unless value is greater
func maxNumber(current, value interface{}) (interface{}, error) {
	vf, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("value %v is not numeric", value)
	}
	if current == nil {
		return value, nil
	}
	cf, ok := toFloat(current)
	if !ok {
		return nil, fmt.Errorf("current value %v is not numeric", current)
	}
	if cf >= vf {
		return current, nil
	}
	return value, nil
}
