package stacks

import (
	"slices"

	"github.com/coral-mesh/stackprof/internal/multiset"
)

// Table is a frequency table of stack records per thread state. A table is
// written by a single owner and sealed on handoff; sealed tables are
// read-only and may be shared between goroutines without locking.
type Table struct {
	states map[ThreadState]*multiset.Multiset[Record]
	sealed bool
}

// NewTable returns an empty, writable table.
func NewTable() *Table {
	return &Table{states: make(map[ThreadState]*multiset.Multiset[Record])}
}

// Add increments the count of (state, record) by n.
func (t *Table) Add(state ThreadState, record Record, n int64) {
	if t.sealed {
		panic("stacks: Add on sealed table")
	}
	if n <= 0 {
		return
	}
	set, ok := t.states[state]
	if !ok {
		set = multiset.New[Record]()
		t.states[state] = set
	}
	set.Add(record, n)
}

// Seal makes the table read-only and returns it.
func (t *Table) Seal() *Table {
	t.sealed = true
	return t
}

// Sealed reports whether the table has been handed off.
func (t *Table) Sealed() bool {
	return t.sealed
}

// Count returns the occurrences of record in state.
func (t *Table) Count(state ThreadState, record Record) int64 {
	if t == nil {
		return 0
	}
	return t.states[state].Count(record)
}

// StateTotal returns the number of samples taken in state.
func (t *Table) StateTotal(state ThreadState) int64 {
	if t == nil {
		return 0
	}
	return t.states[state].Size()
}

// Total returns the number of samples across all states.
func (t *Table) Total() int64 {
	if t == nil {
		return 0
	}
	var total int64
	for _, set := range t.states {
		total += set.Size()
	}
	return total
}

// States returns the states holding at least one sample, in declaration order.
func (t *Table) States() []ThreadState {
	if t == nil {
		return nil
	}
	var states []ThreadState
	for _, s := range AllStates {
		if t.states[s].Size() > 0 {
			states = append(states, s)
		}
	}
	var unknown []ThreadState
	for s, set := range t.states {
		if !s.Valid() && set.Size() > 0 {
			unknown = append(unknown, s)
		}
	}
	slices.Sort(unknown)
	return append(states, unknown...)
}

// Records returns the distinct records sampled in state, in key order.
func (t *Table) Records(state ThreadState) []Record {
	if t == nil {
		return nil
	}
	return t.states[state].Keys()
}

// TopRecords returns up to n records of state ranked by count descending,
// ties broken by record key.
func (t *Table) TopRecords(state ThreadState, n int) []Record {
	if t == nil {
		return nil
	}
	return t.states[state].CountHighest(n)
}

// Each calls fn for every (state, record, count) in deterministic order.
func (t *Table) Each(fn func(state ThreadState, record Record, count int64)) {
	for _, s := range t.States() {
		set := t.states[s]
		for _, r := range set.Keys() {
			fn(s, r, set.Count(r))
		}
	}
}

// Empty reports whether no sample has been recorded.
func (t *Table) Empty() bool {
	return t.Total() == 0
}

// Equal reports whether both tables hold the same counts.
func (t *Table) Equal(other *Table) bool {
	if t.Total() != other.Total() {
		return false
	}
	for _, s := range t.States() {
		if !t.states[s].Equal(other.states[s]) {
			return false
		}
	}
	return len(t.States()) == len(other.States())
}
