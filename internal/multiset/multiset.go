// Package multiset implements a counting set: a map from key to occurrence
// count with increment-by-n and frequency ranking.
package multiset

import (
	"cmp"
	"slices"
)

// Multiset counts occurrences of keys. The zero value is ready to use. It is
// not safe for concurrent mutation.
type Multiset[K cmp.Ordered] struct {
	counts map[K]int64
	size   int64
}

// New returns an empty multiset.
func New[K cmp.Ordered]() *Multiset[K] {
	return &Multiset[K]{counts: make(map[K]int64)}
}

// Add increments the count of key by n. Non-positive n is ignored.
func (m *Multiset[K]) Add(key K, n int64) {
	if n <= 0 {
		return
	}
	if m.counts == nil {
		m.counts = make(map[K]int64)
	}
	m.counts[key] += n
	m.size += n
}

// Count returns the number of occurrences of key.
func (m *Multiset[K]) Count(key K) int64 {
	if m == nil {
		return 0
	}
	return m.counts[key]
}

// Size returns the total number of occurrences across all keys.
func (m *Multiset[K]) Size() int64 {
	if m == nil {
		return 0
	}
	return m.size
}

// Len returns the number of distinct keys.
func (m *Multiset[K]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.counts)
}

// Keys returns the distinct keys in ascending order.
func (m *Multiset[K]) Keys() []K {
	if m == nil {
		return nil
	}
	keys := make([]K, 0, len(m.counts))
	for k := range m.counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// CountHighest returns up to n keys ordered by count descending. Equal counts
// are ordered by key so the result does not depend on insertion history.
func (m *Multiset[K]) CountHighest(n int) []K {
	keys := m.Keys()
	slices.SortStableFunc(keys, func(a, b K) int {
		return cmp.Compare(m.counts[b], m.counts[a])
	})
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Merge adds every occurrence of other into m.
func (m *Multiset[K]) Merge(other *Multiset[K]) {
	if other == nil {
		return
	}
	for k, n := range other.counts {
		m.Add(k, n)
	}
}

// Clone returns an independent copy.
func (m *Multiset[K]) Clone() *Multiset[K] {
	c := New[K]()
	c.Merge(m)
	return c
}

// Equal reports whether both multisets hold the same counts.
func (m *Multiset[K]) Equal(other *Multiset[K]) bool {
	if m.Size() != other.Size() || m.Len() != other.Len() {
		return false
	}
	for k, n := range m.counts {
		if other.Count(k) != n {
			return false
		}
	}
	return true
}
