package irc

import (
	"fmt"
	"strings"
)

// CaseMapping folds an identifier (nickname or channel name) to its
// canonical form under the server-negotiated CASEMAPPING rules. Two
// identifiers refer to the same entity exactly when their folded forms
// are byte-equal.
type CaseMapping func(string) string

// Eq reports whether a and b fold to the same identifier.
func (cm CaseMapping) Eq(a, b string) bool {
	return cm(a) == cm(b)
}

// CasemapASCII of name is the canonical representation of name according
// to the ascii casemapping.
func CasemapASCII(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CasemapRFC1459 of name is the canonical representation of name
// according to the rfc1459 casemapping. RFC 1459 defines {}|^ as the
// lowercase forms of []\~.
func CasemapRFC1459(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		} else if r == '[' {
			r = '{'
		} else if r == ']' {
			r = '}'
		} else if r == '\\' {
			r = '|'
		} else if r == '~' {
			r = '^'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CasemapRFC1459Strict is CasemapRFC1459 without the ~/^ pair, which
// some servers refuse to treat as case variants.
func CasemapRFC1459Strict(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		} else if r == '[' {
			r = '{'
		} else if r == ']' {
			r = '}'
		} else if r == '\\' {
			r = '|'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CaseMappingByName returns the folding function for a CASEMAPPING
// ISUPPORT value. The second return value is false for unknown schemes,
// in which case callers should keep their current mapping.
func CaseMappingByName(name string) (CaseMapping, bool) {
	switch strings.ToLower(name) {
	case "ascii":
		return CasemapASCII, true
	case "rfc1459":
		return CasemapRFC1459, true
	case "rfc1459-strict":
		return CasemapRFC1459Strict, true
	default:
		return nil, false
	}
}

// A SchemeChangeError reports a casemapping change that cannot be
// applied to existing state: two tracked identifiers that were distinct
// under the old scheme fold to the same key under the new one. It is
// fatal to the connection that produced it.
type SchemeChangeError struct {
	Key string
}

func (e *SchemeChangeError) Error() string {
	return fmt.Sprintf("casemapping change collides on folded key %q", e.Key)
}

type casemappedEntry[V any] struct {
	key   string // original casing, last insert wins
	value V
}

// A CasemappedMap is a map whose keys are compared through a
// CaseMapping. The original casing of the most recent insert is kept
// for retrieval.
type CasemappedMap[V any] struct {
	casemap CaseMapping
	entries map[string]casemappedEntry[V]
}

func NewCasemappedMap[V any](casemap CaseMapping) *CasemappedMap[V] {
	return &CasemappedMap[V]{
		casemap: casemap,
		entries: make(map[string]casemappedEntry[V]),
	}
}

func (m *CasemappedMap[V]) Set(key string, value V) {
	m.entries[m.casemap(key)] = casemappedEntry[V]{key: key, value: value}
}

func (m *CasemappedMap[V]) Get(key string) (V, bool) {
	e, ok := m.entries[m.casemap(key)]
	return e.value, ok
}

// Key returns the original casing under which key was last inserted.
func (m *CasemappedMap[V]) Key(key string) (string, bool) {
	e, ok := m.entries[m.casemap(key)]
	return e.key, ok
}

func (m *CasemappedMap[V]) Del(key string) {
	delete(m.entries, m.casemap(key))
}

func (m *CasemappedMap[V]) Has(key string) bool {
	_, ok := m.entries[m.casemap(key)]
	return ok
}

func (m *CasemappedMap[V]) Len() int {
	return len(m.entries)
}

func (m *CasemappedMap[V]) ForEach(f func(key string, value V)) {
	for _, e := range m.entries {
		f(e.key, e.value)
	}
}

// Rebuild re-keys the map under a new CaseMapping. Every folded
// container must be rebuilt when the server changes CASEMAPPING;
// looking keys up through a different mapping than they were inserted
// with silently misses them.
func (m *CasemappedMap[V]) Rebuild(casemap CaseMapping) error {
	entries := make(map[string]casemappedEntry[V], len(m.entries))
	for _, e := range m.entries {
		folded := casemap(e.key)
		if _, ok := entries[folded]; ok {
			return &SchemeChangeError{Key: folded}
		}
		entries[folded] = e
	}
	m.casemap = casemap
	m.entries = entries
	return nil
}

// A CasemappedList is a list of identifiers whose containment and
// removal checks go through a CaseMapping.
type CasemappedList struct {
	casemap CaseMapping
	items   []string
}

func NewCasemappedList(casemap CaseMapping, items ...string) *CasemappedList {
	l := &CasemappedList{casemap: casemap}
	for _, item := range items {
		l.Add(item)
	}
	return l
}

func (l *CasemappedList) Add(item string) {
	if l.Contains(item) {
		return
	}
	l.items = append(l.items, item)
}

func (l *CasemappedList) Contains(item string) bool {
	folded := l.casemap(item)
	for _, it := range l.items {
		if l.casemap(it) == folded {
			return true
		}
	}
	return false
}

func (l *CasemappedList) Remove(item string) bool {
	folded := l.casemap(item)
	for i, it := range l.items {
		if l.casemap(it) == folded {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *CasemappedList) Items() []string {
	return l.items
}

func (l *CasemappedList) Len() int {
	return len(l.items)
}

// Rebuild switches the list to a new CaseMapping. Items that collapse
// to the same folded form under the new scheme make the switch invalid.
func (l *CasemappedList) Rebuild(casemap CaseMapping) error {
	seen := make(map[string]struct{}, len(l.items))
	for _, it := range l.items {
		folded := casemap(it)
		if _, ok := seen[folded]; ok {
			return &SchemeChangeError{Key: folded}
		}
		seen[folded] = struct{}{}
	}
	l.casemap = casemap
	return nil
}

// A CasemappedString is an identifier that compares through a
// CaseMapping while keeping its original casing for display.
type CasemappedString struct {
	Value   string
	casemap CaseMapping
}

func NewCasemappedString(casemap CaseMapping, value string) CasemappedString {
	return CasemappedString{Value: value, casemap: casemap}
}

func (s CasemappedString) String() string {
	return s.Value
}

func (s CasemappedString) Folded() string {
	return s.casemap(s.Value)
}

func (s CasemappedString) Eq(other string) bool {
	return s.casemap(s.Value) == s.casemap(other)
}
