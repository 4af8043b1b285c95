package schema

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Z]+[a-z0-9]*|[a-z0-9]+`)

// AliasVariants expands a canonical field name into its ordered alias list.
//
// The list holds the name, the name without spaces, both lowercased, the
// snake_case form of the camelCase words and that form without underscores.
// Each extra is then appended as given, lowercased and without underscores.
// Values are trimmed, empty values dropped and duplicates removed while keeping
// first insertion order.
func AliasVariants(name string, extras ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	compact := strings.ReplaceAll(name, " ", "")
	add(name)
	add(compact)
	add(strings.ToLower(name))
	add(strings.ToLower(compact))

	if words := wordPattern.FindAllString(name, -1); len(words) > 0 {
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
		snake := strings.Join(words, "_")
		add(snake)
		add(strings.ReplaceAll(snake, "_", ""))
	}

	for _, extra := range extras {
		add(extra)
		add(strings.ToLower(extra))
		add(strings.ReplaceAll(extra, "_", ""))
	}
	return out
}
