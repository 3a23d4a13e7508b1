package acl

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// Metadata is an ordered multimap from string keys to string values. It
// preserves overall insertion order across all keys (not grouped by key),
// which is what the feed builder needs to emit <meta name=... content=.../>
// entries in the order the repository produced them. The per-key index is
// an orderedmap.OrderedMap so repeated lookups by key stay O(1) while still
// letting callers walk keys in first-seen order.
type Metadata struct {
	pairs []kv
	index *orderedmap.OrderedMap[string, []int]
}

type kv struct {
	Key, Value string
}

// NewMetadata builds an empty Metadata multimap.
func NewMetadata() *Metadata {
	return &Metadata{index: orderedmap.NewOrderedMap[string, []int]()}
}

// Add appends a (key, value) pair, preserving insertion order.
func (m *Metadata) Add(key, value string) {
	idx := len(m.pairs)
	m.pairs = append(m.pairs, kv{key, value})
	existing, _ := m.index.Get(key)
	m.index.Set(key, append(existing, idx))
}

// Values returns all values recorded for key, in insertion order.
func (m *Metadata) Values(key string) []string {
	idxs, ok := m.index.Get(key)
	if !ok {
		return nil
	}
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = m.pairs[idx].Value
	}
	return out
}

// Keys returns the distinct keys in first-seen order.
func (m *Metadata) Keys() []string {
	return m.index.Keys()
}

// All returns every (key, value) pair in overall insertion order.
func (m *Metadata) All() []kv {
	out := make([]kv, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Len returns the total number of (key, value) pairs.
func (m *Metadata) Len() int {
	return len(m.pairs)
}

// Equal compares two Metadata multimaps by their trimmed equality view:
// keys and values are compared after trimming surrounding whitespace, and
// order does not matter for equality (only the feed emission order does).
func (m *Metadata) Equal(o *Metadata) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Len() != o.Len() {
		return false
	}
	a := trimmedMultiset(m)
	b := trimmedMultiset(o)
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}

func trimmedMultiset(m *Metadata) map[string][]string {
	out := make(map[string][]string)
	for _, p := range m.All() {
		k := strings.TrimSpace(p.Key)
		out[k] = append(out[k], strings.TrimSpace(p.Value))
	}
	for k := range out {
		sortStrings(out[k])
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
