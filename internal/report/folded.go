package report

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// renderFolded writes every (state, stack) pair as a flame graph "folded"
// line: the state is the root frame, the sampled frames follow from the
// outermost call to the innermost. Nothing is filtered.
func renderFolded(w io.Writer, table *stacks.Table) error {
	bw := bufio.NewWriter(w)

	table.Each(func(state stacks.ThreadState, record stacks.Record, count int64) {
		frames := record.Lines()
		slices.Reverse(frames)
		path := append([]string{state.String()}, frames...)
		for i, f := range path {
			path[i] = strings.ReplaceAll(f, ";", ":")
		}
		fmt.Fprintf(bw, "%s %d\n", strings.Join(path, ";"), count)
	})

	return bw.Flush()
}
