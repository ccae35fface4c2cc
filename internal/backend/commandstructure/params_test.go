package commandstructure

import (
	"strings"
	"testing"
)

func TestGetStringParam(t *testing.T) {
	params := map[string]any{"filter": "sepia", "width": 15, "nil": nil}

	tests := []struct {
		key  string
		want string
	}{
		{"filter", "sepia"},
		{"width", "none"},
		{"nil", "none"},
		{"missing", "none"},
	}
	for _, tt := range tests {
		if got := GetStringParam(params, tt.key, "none"); got != tt.want {
			t.Errorf("GetStringParam(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetIntParam(t *testing.T) {
	params := map[string]any{
		"yamlInt":   384,
		"int64":     int64(576),
		"jsonFloat": float64(15.9),
		"query":     " 42 ",
		"garbage":   "wide",
	}

	tests := []struct {
		key  string
		want int
	}{
		{"yamlInt", 384},
		{"int64", 576},
		{"jsonFloat", 15},
		{"query", 42},
		{"garbage", -1},
		{"missing", -1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := GetIntParam(params, tt.key, -1); got != tt.want {
				t.Errorf("GetIntParam(%q) = %d, want %d", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetFloatParam(t *testing.T) {
	params := map[string]any{
		"f":       0.25,
		"f32":     float32(0.5),
		"i":       2,
		"str":     "0.75",
		"garbage": "big",
	}

	tests := []struct {
		key  string
		want float64
	}{
		{"f", 0.25},
		{"f32", 0.5},
		{"i", 2},
		{"str", 0.75},
		{"garbage", 1},
		{"missing", 1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := GetFloatParam(params, tt.key, 1); got != tt.want {
				t.Errorf("GetFloatParam(%q) = %f, want %f", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetBoolParam(t *testing.T) {
	params := map[string]any{
		"yamlTrue":  true,
		"yamlFalse": false,
		"strTrue":   "TRUE ",
		"strFalse":  "false",
		"garbage":   "maybe",
		"number":    1,
	}

	tests := []struct {
		key          string
		defaultValue bool
		want         bool
	}{
		{"yamlTrue", false, true},
		{"yamlFalse", true, false},
		{"strTrue", false, true},
		{"strFalse", true, false},
		{"garbage", true, true},
		{"number", false, false},
		{"missing", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := GetBoolParam(params, tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("GetBoolParam(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetEnumParam(t *testing.T) {
	frames := map[string]int{"none": 0, "classic": 1, "black": 2}

	tests := []struct {
		name    string
		params  map[string]any
		want    string
		wantErr string
	}{
		{name: "absent uses default", params: map[string]any{}, want: "none"},
		{name: "empty uses default", params: map[string]any{"frame": ""}, want: "none"},
		{name: "known value", params: map[string]any{"frame": "black"}, want: "black"},
		{name: "unknown value", params: map[string]any{"frame": "gold"}, wantErr: `invalid frame: "gold" (supported: black, classic, none)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetEnumParam(tt.params, "frame", "none", frames)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
