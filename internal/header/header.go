// Package header normalizes raw CSV header names into matching tokens.
package header

import "strings"

// Token lowercases s and drops every character outside [a-z0-9].
func Token(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Map resolves normalized tokens back to the original header text.
type Map struct {
	first      map[string]string
	collisions map[string][]string
	order      []string
	headers    []string
}

// Normalize trims every header, skips the empty ones and indexes the rest by
// token. When several headers share a token the first one wins; the others are
// recorded as collisions.
func Normalize(headers []string) *Map {
	m := &Map{first: make(map[string]string, len(headers))}
	for _, raw := range headers {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		m.headers = append(m.headers, trimmed)

		tok := Token(trimmed)
		if prev, ok := m.first[tok]; ok {
			if m.collisions == nil {
				m.collisions = make(map[string][]string)
			}
			if len(m.collisions[tok]) == 0 {
				m.collisions[tok] = []string{prev}
			}
			m.collisions[tok] = append(m.collisions[tok], trimmed)
			continue
		}
		m.first[tok] = trimmed
		m.order = append(m.order, tok)
	}
	return m
}

// Lookup returns the original header for a token.
func (m *Map) Lookup(token string) (string, bool) {
	h, ok := m.first[token]
	return h, ok
}

// Has reports whether any header normalizes to the token of name.
func (m *Map) Has(name string) bool {
	_, ok := m.first[Token(name)]
	return ok
}

// FirstMatch returns the first alias whose token is present, together with the
// original header it resolved to.
func (m *Map) FirstMatch(aliases []string) (alias, header string, ok bool) {
	for _, a := range aliases {
		if h, found := m.first[Token(a)]; found {
			return a, h, true
		}
	}
	return "", "", false
}

// Tokens returns the distinct tokens in first-seen order.
func (m *Map) Tokens() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Headers returns the trimmed, non-empty headers in input order.
func (m *Map) Headers() []string {
	out := make([]string, len(m.headers))
	copy(out, m.headers)
	return out
}

// Collisions returns token → headers for every token more than one header
// normalized to. The first entry of each list is the header that won.
func (m *Map) Collisions() map[string][]string {
	if len(m.collisions) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m.collisions))
	for k, v := range m.collisions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Len returns the number of distinct tokens.
func (m *Map) Len() int {
	return len(m.first)
}
