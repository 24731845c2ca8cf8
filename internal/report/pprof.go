package report

import (
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// StateLabel is the pprof sample label carrying the thread state.
const StateLabel = "state"

// WritePprof encodes table as a gzipped pprof profile with one sample per
// (state, stack). Frame identifiers become function names, so `go tool
// pprof -tagfocus state=BLOCKED` and the usual views work on the result.
func WritePprof(w io.Writer, table *stacks.Table, period time.Duration) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:     period.Nanoseconds(),
		TimeNanos:  time.Now().UnixNano(),
	}

	locations := make(map[string]*profile.Location)
	location := func(frame string) *profile.Location {
		if loc, ok := locations[frame]; ok {
			return loc
		}
		fn := &profile.Function{
			ID:         uint64(len(p.Function) + 1),
			Name:       frame,
			SystemName: frame,
		}
		loc := &profile.Location{
			ID:   uint64(len(p.Location) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		locations[frame] = loc
		return loc
	}

	table.Each(func(state stacks.ThreadState, record stacks.Record, count int64) {
		lines := record.Lines()
		sample := &profile.Sample{
			Location: make([]*profile.Location, len(lines)),
			Value:    []int64{count},
			Label:    map[string][]string{StateLabel: {state.String()}},
		}
		for i, frame := range lines {
			sample.Location[i] = location(frame)
		}
		p.Sample = append(p.Sample, sample)
	})

	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return p.Write(w)
}

// ReadPprof decodes a profile written by WritePprof back into a sealed
// table. Samples without a state label count as RUNNABLE.
func ReadPprof(r io.Reader) (*stacks.Table, error) {
	p, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if len(p.SampleType) == 0 {
		return nil, fmt.Errorf("profile has no sample types")
	}

	table := stacks.NewTable()
	for _, sample := range p.Sample {
		state := stacks.StateRunnable
		if names := sample.Label[StateLabel]; len(names) > 0 {
			if state, err = stacks.ParseThreadState(names[0]); err != nil {
				return nil, err
			}
		}

		var frames []string
		for _, loc := range sample.Location {
			// Inlined frames come innermost first within a location.
			for _, line := range loc.Line {
				if line.Function != nil {
					frames = append(frames, line.Function.Name)
				}
			}
		}
		if len(frames) == 0 {
			frames = []string{stacks.EmptyStackLine}
		}

		table.Add(state, stacks.NewRecord(frames...), sample.Value[0])
	}
	return table.Seal(), nil
}
