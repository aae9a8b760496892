// Package template renders prompt templates with {{placeholder}} syntax.
//
// Supported forms:
//
//	{{name}}                         variable substitution (dotted paths allowed)
//	{{dep.NODE}} / {{dep.NODE.key}}  upstream dependency values
//	{{#if name}}...{{else}}...{{/if}} conditional block
//	{{#each name}}...{{/each}}       loop block; {{this}} and {{@index}} inside
//
// A placeholder that resolves to nothing is left verbatim in the output —
// never replaced with an empty string. Callers rely on this to detect
// unresolved dependencies in rendered prompts. Blocks do not nest.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	eachRe = regexp.MustCompile(`(?s)\{\{#each\s+([@\w.]+)\}\}(.*?)\{\{/each\}\}`)
	ifRe   = regexp.MustCompile(`(?s)\{\{#if\s+([@\w.]+)\}\}(.*?)\{\{/if\}\}`)
	varRe  = regexp.MustCompile(`\{\{([@\w.]+)\}\}`)
)

// Render substitutes vars and deps into tmpl. It never fails: malformed or
// unresolved constructs pass through untouched.
func Render(tmpl string, vars map[string]any, deps map[string]any) string {
	out := renderEach(tmpl, vars, deps)
	out = renderIf(out, vars, deps)
	out = renderVars(out, vars, deps)
	return out
}

func renderEach(tmpl string, vars, deps map[string]any) string {
	return eachRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := eachRe.FindStringSubmatch(match)
		name, body := groups[1], groups[2]

		value, ok := resolve(name, vars, deps)
		if !ok {
			return match
		}
		items, ok := asSlice(value)
		if !ok {
			return match
		}

		var b strings.Builder
		for i, item := range items {
			scoped := map[string]any{"this": item, "@index": i}
			// Element fields shadow outer vars inside the block.
			if obj, isMap := item.(map[string]any); isMap {
				for k, v := range obj {
					scoped[k] = v
				}
			}
			for k, v := range vars {
				if _, shadowed := scoped[k]; !shadowed {
					scoped[k] = v
				}
			}
			seg := renderIf(body, scoped, deps)
			seg = renderVars(seg, scoped, deps)
			b.WriteString(seg)
		}
		return b.String()
	})
}

func renderIf(tmpl string, vars, deps map[string]any) string {
	return ifRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := ifRe.FindStringSubmatch(match)
		name, body := groups[1], groups[2]

		thenPart, elsePart, hasElse := strings.Cut(body, "{{else}}")

		value, ok := resolve(name, vars, deps)
		if ok && truthy(value) {
			return thenPart
		}
		if hasElse {
			return elsePart
		}
		return ""
	})
}

func renderVars(tmpl string, vars, deps map[string]any) string {
	return varRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		value, ok := resolve(name, vars, deps)
		if !ok {
			return match
		}
		return stringify(value)
	})
}

// resolve looks up a possibly dotted name. "dep."-prefixed names resolve
// against deps only; everything else tries vars first, then deps. A lookup
// that dead-ends reports ok=false so the caller keeps the placeholder.
func resolve(name string, vars, deps map[string]any) (any, bool) {
	if rest, isDep := strings.CutPrefix(name, "dep."); isDep {
		return lookupPath(deps, rest)
	}
	if v, ok := lookupPath(vars, name); ok {
		return v, true
	}
	return lookupPath(deps, name)
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = m
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// Render integral floats without the trailing ".0" JSON decoding adds.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func asSlice(v any) ([]any, bool) {
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
