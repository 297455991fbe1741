package common

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Payload traversal helpers. Webhook payloads arrive as arbitrary decoded
// JSON, so every accessor here tolerates nil maps, missing keys and wrongly
// typed values by returning its zero result instead of panicking. CanHandle
// and Validate are built entirely out of these.

// AsMap reports the payload as a JSON object if it is one.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// MapField returns the object stored under key, or nil.
func MapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

// SliceField returns the array stored under key, or nil.
func SliceField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	s, _ := m[key].([]any)
	return s
}

// StringField returns the string stored under key, or "".
func StringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// BoolField returns the boolean stored under key, or false.
func BoolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// HasKey reports whether key is present at all, regardless of its value.
func HasKey(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// NumberField returns the numeric value stored under key. JSON decoding
// yields float64, but payloads assembled in Go code may carry native integer
// types, so all of them are accepted.
func NumberField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	return asNumber(m[key])
}

// Int64Field is NumberField for epoch values. Providers are inconsistent
// about whether timestamps travel as JSON numbers or digit strings, so both
// are accepted.
func Int64Field(m map[string]any, key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		f, ok := asNumber(m[key])
		if !ok {
			return 0, false
		}
		return int64(f), true
	}
}

// FirstMap returns the first element of the slice that is an object.
func FirstMap(s []any) map[string]any {
	for _, v := range s {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// TopLevelKeys returns the sorted keys of a payload if it is an object;
// otherwise a one-element description of its JSON kind. Used for the
// diagnostics attached to UNKNOWN_PROVIDER failures.
func TopLevelKeys(v any) []string {
	m, ok := AsMap(v)
	if !ok {
		switch v.(type) {
		case nil:
			return []string{"<nil>"}
		case []any:
			return []string{"<array>"}
		default:
			return []string{"<scalar>"}
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
