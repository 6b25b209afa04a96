// Package claims holds the claim set type shared by mappers and issuers.
package claims

import "strings"

// Claims is a set of token claims keyed by claim name
type Claims map[string]any

// GetString returns the claim as a string, or "" if absent or not a string
func (c Claims) GetString(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Copy returns a deep copy of the claims. Nested objects and arrays are
// copied so the result can be mutated independently.
func (c Claims) Copy() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = copyValue(v)
	}
	return out
}

// Merge folds other into c. Nested objects present on both sides are merged
// recursively, any other value in other replaces the one in c.
func (c Claims) Merge(other Claims) {
	for k, v := range other {
		existing, ok := c[k].(map[string]any)
		incoming, isMap := v.(map[string]any)
		if ok && isMap {
			Claims(existing).Merge(incoming)
			continue
		}
		c[k] = copyValue(v)
	}
}

// SetPath stores value under a possibly nested claim name.
//
// Dots separate nesting levels ("realm.roles" produces {"realm":{"roles":v}}),
// a backslash-escaped dot is kept literally ("a\.b" is the single claim "a.b").
// A nil value leaves the claims untouched.
func (c Claims) SetPath(name string, value any) {
	if value == nil || name == "" {
		return
	}
	parts := SplitPath(name)
	current := map[string]any(c)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// SplitPath splits a claim name on unescaped dots
func SplitPath(name string) []string {
	var parts []string
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '\\' && i+1 < len(name) && name[i+1] == '.' {
			b.WriteByte('.')
			i++
			continue
		}
		if ch == '.' {
			parts = append(parts, b.String())
			b.Reset()
			continue
		}
		b.WriteByte(ch)
	}
	return append(parts, b.String())
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Claims(t).Copy())
	case Claims:
		return t.Copy()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
