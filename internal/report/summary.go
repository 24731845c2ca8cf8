package report

import (
	"sort"

	"github.com/coral-mesh/stackprof/internal/constants"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// OtherLabel names the line summarizing undisplayed stacks of a state.
const OtherLabel = "<other>"

// Options control ranking.
type Options struct {
	// TopStacks is the number of stacks listed per state (default: 10).
	TopStacks int
}

func (o Options) withDefaults() Options {
	if o.TopStacks <= 0 {
		o.TopStacks = constants.DefaultTopStacks
	}
	return o
}

// Summary is the ranked, threshold-filtered view of a table that every
// textual format renders.
type Summary struct {
	Total  int64          `json:"total_samples"`
	States []StateSummary `json:"states"`
}

// StateSummary is one significant thread state.
type StateSummary struct {
	State   stacks.ThreadState `json:"-"`
	Name    string             `json:"state"`
	Count   int64              `json:"count"`
	Percent float64            `json:"percent"`
	Stacks  []StackSummary     `json:"stacks"`
	Other   *StackSummary      `json:"other,omitempty"`
}

// StackSummary is one ranked stack, or the <other> remainder.
type StackSummary struct {
	Frames       []string `json:"frames"`
	Count        int64    `json:"count"`
	Percent      float64  `json:"percent"`
	StatePercent float64  `json:"state_percent"`
}

// Significant reports whether part is at least 0.1% of total. Integer
// arithmetic keeps the boundary exact.
func Significant(part, total int64) bool {
	return part*1000 >= total
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100.0 / float64(total)
}

// Summarize ranks states by sample count (ties in state order), keeps the
// significant ones and lists each state's top stacks by count (ties by
// stack key).
func Summarize(table *stacks.Table, opts Options) Summary {
	opts = opts.withDefaults()
	total := table.Total()
	summary := Summary{Total: total}
	if total == 0 {
		return summary
	}

	states := table.States()
	sort.SliceStable(states, func(i, j int) bool {
		return table.StateTotal(states[i]) > table.StateTotal(states[j])
	})

	for _, state := range states {
		stateTotal := table.StateTotal(state)
		if !Significant(stateTotal, total) {
			continue
		}

		ss := StateSummary{
			State:   state,
			Name:    state.String(),
			Count:   stateTotal,
			Percent: percent(stateTotal, total),
		}

		var displayed int64
		for _, record := range table.TopRecords(state, opts.TopStacks) {
			lines := record.Lines()
			if len(lines) == 0 {
				continue
			}
			count := table.Count(state, record)
			displayed += count
			ss.Stacks = append(ss.Stacks, StackSummary{
				Frames:       lines,
				Count:        count,
				Percent:      percent(count, total),
				StatePercent: percent(count, stateTotal),
			})
		}

		if rest := stateTotal - displayed; rest > 0 && Significant(rest, total) {
			ss.Other = &StackSummary{
				Frames:       []string{OtherLabel},
				Count:        rest,
				Percent:      percent(rest, total),
				StatePercent: percent(rest, stateTotal),
			}
		}

		summary.States = append(summary.States, ss)
	}
	return summary
}
