package multiset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiset_AddAndCount(t *testing.T) {
	m := New[string]()
	m.Add("a", 1)
	m.Add("a", 2)
	m.Add("b", 1)
	m.Add("c", 0)
	m.Add("c", -4)

	assert.Equal(t, int64(3), m.Count("a"))
	assert.Equal(t, int64(1), m.Count("b"))
	assert.Equal(t, int64(0), m.Count("c"))
	assert.Equal(t, int64(4), m.Size())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestMultiset_ZeroValue(t *testing.T) {
	var m Multiset[int]
	m.Add(7, 2)
	assert.Equal(t, int64(2), m.Count(7))

	var nilSet *Multiset[int]
	assert.Equal(t, int64(0), nilSet.Size())
	assert.Equal(t, 0, nilSet.Len())
	assert.Empty(t, nilSet.Keys())
}

func TestMultiset_CountHighest(t *testing.T) {
	m := New[string]()
	m.Add("low", 1)
	m.Add("tie-b", 5)
	m.Add("top", 9)
	m.Add("tie-a", 5)

	assert.Equal(t, []string{"top", "tie-a", "tie-b", "low"}, m.CountHighest(10))
	assert.Equal(t, []string{"top", "tie-a"}, m.CountHighest(2))
	assert.Empty(t, m.CountHighest(0))
}

func TestMultiset_CountHighestIgnoresInsertionOrder(t *testing.T) {
	a := New[string]()
	a.Add("x", 2)
	a.Add("y", 2)
	b := New[string]()
	b.Add("y", 2)
	b.Add("x", 2)

	assert.Equal(t, a.CountHighest(-1), b.CountHighest(-1))
}

func TestMultiset_MergeCloneEqual(t *testing.T) {
	a := New[string]()
	a.Add("x", 2)
	b := New[string]()
	b.Add("x", 1)
	b.Add("y", 3)

	c := a.Clone()
	c.Merge(b)
	require.Equal(t, int64(3), c.Count("x"))
	require.Equal(t, int64(3), c.Count("y"))
	assert.Equal(t, int64(2), a.Count("x"), "clone is independent")

	d := b.Clone()
	d.Merge(a)
	assert.True(t, c.Equal(d))
	assert.False(t, c.Equal(a))
}
