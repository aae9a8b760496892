// Package schema declares prompt input parameter contracts and validates
// candidate input maps against them. Validation is a pure function: no I/O,
// deterministic error ordering, warnings never affect validity.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type enumerates the supported parameter value types.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Spec is one input parameter's contract. Constraint fields are pointers so
// "unset" is distinguishable from zero. Properties makes object specs recursive.
type Spec struct {
	Type     Type `json:"type" yaml:"type"`
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any  `json:"default,omitempty" yaml:"default,omitempty"`

	// string constraints
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum      []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// number constraints
	Minimum *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`

	// array constraints
	MinItems *int `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems *int `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`

	// object constraints
	Properties map[string]Spec `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Normalize checks structural invariants on a declared parameter map.
// A required parameter must not carry a default: the two are contradictory
// (the default could never apply), so the loader rejects the spec outright
// rather than silently dropping one side.
func Normalize(specs map[string]Spec) error {
	for _, name := range sortedKeys(specs) {
		spec := specs[name]
		if spec.Required && spec.Default != nil {
			return fmt.Errorf("parameter %q: required parameter must not declare a default", name)
		}
		switch spec.Type {
		case TypeString, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		default:
			return fmt.Errorf("parameter %q: unknown type %q", name, spec.Type)
		}
		if spec.Type == TypeObject && spec.Properties != nil {
			if err := Normalize(spec.Properties); err != nil {
				return fmt.Errorf("parameter %q: %w", name, err)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// asNumber extracts a float64 from the numeric shapes a JSON or YAML decode
// can produce. bool is explicitly not a number.
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
		return f, err == nil
	default:
		return 0, false
	}
}
