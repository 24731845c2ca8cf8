package stacks

// Aggregate merges tables by summing the count of every (state, record)
// across the inputs. It is commutative and associative, the empty table is
// its identity, and nil inputs are skipped. Inputs are only read; the result
// is a new sealed table.
func Aggregate(tables ...*Table) *Table {
	sum := NewTable()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for state, set := range t.states {
			for _, r := range set.Keys() {
				sum.Add(state, r, set.Count(r))
			}
		}
	}
	return sum.Seal()
}
