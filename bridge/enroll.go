package bridge

import "strings"

// Matcher decides whether a capability function is enrolled as a
// suspension point. The enrollment list is declared out-of-band when the
// guest binary is generated; the bridge only checks membership.
type Matcher interface {
	Match(namespace, name string) bool
}

// ExactMatcher matches exact "namespace#name" or bare "name" patterns.
type ExactMatcher struct {
	patterns map[string]bool
}

// NewExactMatcher creates a matcher from a list of patterns. Patterns
// are either "name" (any namespace) or "namespace#name".
func NewExactMatcher(patterns []string) *ExactMatcher {
	m := &ExactMatcher{patterns: make(map[string]bool)}
	for _, p := range patterns {
		m.patterns[p] = true
	}
	return m
}

// Match returns true if the function matches any pattern.
func (m *ExactMatcher) Match(namespace, name string) bool {
	if m.patterns[namespace+"#"+name] {
		return true
	}
	return m.patterns[name]
}

// WildcardMatcher matches enrollment patterns with wildcard support.
//
// Supported forms:
//   - "namespace#name" - exact match
//   - "name" - matches any namespace with this function name
//   - "namespace#*" - every function in the namespace
//   - "*" - everything
type WildcardMatcher struct {
	exact    map[string]bool
	names    map[string]bool
	nsWilds  map[string]bool
	matchAll bool
}

// NewWildcardMatcher creates a matcher with wildcard support.
func NewWildcardMatcher(patterns []string) *WildcardMatcher {
	m := &WildcardMatcher{
		exact:   make(map[string]bool),
		names:   make(map[string]bool),
		nsWilds: make(map[string]bool),
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			m.matchAll = true
		case strings.HasSuffix(p, "#*"):
			m.nsWilds[strings.TrimSuffix(p, "#*")] = true
		case strings.Contains(p, "#"):
			m.exact[p] = true
		default:
			m.names[p] = true
		}
	}
	return m
}

// Match returns true if the function matches any pattern.
func (m *WildcardMatcher) Match(namespace, name string) bool {
	if m.matchAll {
		return true
	}
	if m.nsWilds[namespace] {
		return true
	}
	if m.exact[namespace+"#"+name] {
		return true
	}
	return m.names[name]
}

// WITMatcher matches WIT-style capability namespaces.
//
// Supported forms:
//   - "wasi:io/poll@0.2.0#block" - exact match
//   - "wasi:io/poll#block" - any version
//   - "wasi:http/*" - namespace prefix
type WITMatcher struct {
	exact    map[string]bool
	noVer    map[string]bool
	prefixes []string
}

// NewWITMatcher creates a WIT-style matcher.
func NewWITMatcher(patterns []string) *WITMatcher {
	m := &WITMatcher{
		exact: make(map[string]bool),
		noVer: make(map[string]bool),
	}
	for _, p := range patterns {
		switch {
		case strings.HasSuffix(p, "*"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
		case !strings.Contains(p, "@"):
			m.noVer[p] = true
		default:
			m.exact[p] = true
		}
	}
	return m
}

// Match returns true if the WIT-style function matches any pattern.
func (m *WITMatcher) Match(namespace, name string) bool {
	full := namespace + "#" + name
	if m.exact[full] {
		return true
	}
	if m.noVer[stripVersion(namespace)+"#"+name] {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(full, prefix) {
			return true
		}
	}
	return false
}

func stripVersion(ns string) string {
	if idx := strings.Index(ns, "@"); idx >= 0 {
		return ns[:idx]
	}
	return ns
}

// MultiMatcher combines matchers; a function is enrolled if any matches.
type MultiMatcher []Matcher

// Match returns true if any sub-matcher matches.
func (m MultiMatcher) Match(namespace, name string) bool {
	for _, sub := range m {
		if sub.Match(namespace, name) {
			return true
		}
	}
	return false
}
