package remote

import "strings"

// ParseKeyValues parses a "key=value&key=value" configuration string.
//
// Blank input yields an empty map. Each entry is split on its first '=' so
// values may contain '='; entries without '=' are dropped. When a key repeats
// the last value wins. Nothing is decoded or unescaped.
func ParseKeyValues(raw string) map[string]string {
	out := make(map[string]string)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}

	for _, entry := range strings.Split(raw, "&") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// splitList splits a list of names on '&' and ',', trimming blanks
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '&' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
