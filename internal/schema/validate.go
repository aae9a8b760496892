package schema

import (
	"fmt"
	"regexp"
)

// Report is the outcome of validating an input map against declared specs.
// Valid is true iff Errors is empty; Warnings never affect validity.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks inputs against the declared parameter specs.
//
// Declared parameters are checked in sorted name order; per parameter the
// type check runs first (a type mismatch suppresses constraint checks), then
// constraints in a fixed order: minLength, maxLength, pattern, enum, minimum,
// maximum, minItems, maxItems, object shape. Keys present in inputs but not
// declared produce warnings, not errors.
func Validate(inputs map[string]any, specs map[string]Spec) Report {
	r := Report{}

	for _, name := range sortedKeys(specs) {
		spec := specs[name]
		value, present := inputs[name]
		if !present {
			if spec.Required {
				r.Errors = append(r.Errors, fmt.Sprintf("Required parameter '%s' is missing", name))
			}
			continue
		}
		r.Errors = append(r.Errors, checkValue(name, value, spec)...)
	}

	for _, name := range sortedKeys(inputs) {
		if _, declared := specs[name]; !declared {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Unexpected parameter '%s' will be ignored", name))
		}
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func checkValue(name string, value any, spec Spec) []string {
	switch spec.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("Parameter '%s' must be a string", name)}
		}
		return checkString(name, s, spec)
	case TypeNumber:
		n, ok := asNumber(value)
		if !ok {
			return []string{fmt.Sprintf("Parameter '%s' must be a number", name)}
		}
		return checkNumber(name, n, spec)
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("Parameter '%s' must be a boolean", name)}
		}
		return nil
	case TypeArray:
		items, ok := asArray(value)
		if !ok {
			return []string{fmt.Sprintf("Parameter '%s' must be an array", name)}
		}
		return checkArray(name, items, spec)
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("Parameter '%s' must be an object", name)}
		}
		return checkObject(name, obj, spec)
	default:
		return []string{fmt.Sprintf("Parameter '%s' has unknown declared type '%s'", name, spec.Type)}
	}
}

func checkString(name, s string, spec Spec) []string {
	var errs []string
	if spec.MinLength != nil && len(s) < *spec.MinLength {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must be at least %d characters", name, *spec.MinLength))
	}
	if spec.MaxLength != nil && len(s) > *spec.MaxLength {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must be at most %d characters", name, *spec.MaxLength))
	}
	if spec.Pattern != "" {
		// Search semantics, not full-string anchoring.
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Parameter '%s' has an invalid pattern '%s'", name, spec.Pattern))
		} else if !re.MatchString(s) {
			errs = append(errs, fmt.Sprintf("Parameter '%s' does not match pattern '%s'", name, spec.Pattern))
		}
	}
	if len(spec.Enum) > 0 {
		found := false
		for _, allowed := range spec.Enum {
			if s == allowed {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("Parameter '%s' must be one of %v", name, spec.Enum))
		}
	}
	return errs
}

func checkNumber(name string, n float64, spec Spec) []string {
	var errs []string
	if spec.Minimum != nil && n < *spec.Minimum {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must be at least %v", name, *spec.Minimum))
	}
	if spec.Maximum != nil && n > *spec.Maximum {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must be at most %v", name, *spec.Maximum))
	}
	return errs
}

func checkArray(name string, items []any, spec Spec) []string {
	var errs []string
	if spec.MinItems != nil && len(items) < *spec.MinItems {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must have at least %d items", name, *spec.MinItems))
	}
	if spec.MaxItems != nil && len(items) > *spec.MaxItems {
		errs = append(errs, fmt.Sprintf("Parameter '%s' must have at most %d items", name, *spec.MaxItems))
	}
	return errs
}

func checkObject(name string, obj map[string]any, spec Spec) []string {
	var errs []string
	if spec.Properties != nil {
		for _, propName := range sortedKeys(spec.Properties) {
			propSpec := spec.Properties[propName]
			value, present := obj[propName]
			qualified := name + "." + propName
			if !present {
				if propSpec.Required {
					errs = append(errs, fmt.Sprintf("Required parameter '%s' is missing", qualified))
				}
				continue
			}
			errs = append(errs, checkValue(qualified, value, propSpec)...)
		}
	}
	return errs
}

// asArray accepts the slice shapes JSON and YAML decoding produce.
func asArray(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
