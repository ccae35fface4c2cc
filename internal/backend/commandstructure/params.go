package commandstructure

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params arrive from YAML (typed scalars) and from request bodies or query
// strings (strings), so every getter accepts both shapes.

func param[T any](params map[string]any, key string, def T, conv func(any) (T, bool)) T {
	val, ok := params[key]
	if !ok || val == nil {
		return def
	}
	if v, ok := conv(val); ok {
		return v
	}
	return def
}

// GetStringParam returns params[key] when it is a string.
func GetStringParam(params map[string]any, key string, defaultValue string) string {
	return param(params, key, defaultValue, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// GetIntParam returns params[key] as an int; floats are truncated.
func GetIntParam(params map[string]any, key string, defaultValue int) int {
	return param(params, key, defaultValue, func(v any) (int, bool) {
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			return i, err == nil
		}
		return 0, false
	})
}

// GetFloatParam returns params[key] as a float64.
func GetFloatParam(params map[string]any, key string, defaultValue float64) float64 {
	return param(params, key, defaultValue, func(v any) (float64, bool) {
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			return f, err == nil
		}
		return 0, false
	})
}

// GetBoolParam returns params[key] as a bool; strings must read "true" or "false".
func GetBoolParam(params map[string]any, key string, defaultValue bool) bool {
	return param(params, key, defaultValue, func(v any) (bool, bool) {
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return false, false
	})
}

// GetEnumParam returns the string at key, or defaultValue when it is absent
// or empty, and fails when the value is not one of the keys of allowed.
func GetEnumParam[V any](params map[string]any, key, defaultValue string, allowed map[string]V) (string, error) {
	value := GetStringParam(params, key, "")
	if value == "" {
		value = defaultValue
	}
	if _, ok := allowed[value]; !ok {
		names := make([]string, 0, len(allowed))
		for name := range allowed {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("invalid %s: %q (supported: %s)", key, value, strings.Join(names, ", "))
	}
	return value, nil
}
