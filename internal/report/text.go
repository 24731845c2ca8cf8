package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const headerWidth = 100

// dottedLine renders "....[header]" padded with dots to the header width.
func dottedLine(header string) string {
	header = "[" + header + "]"
	pad := max(headerWidth-4-len(header), 0)
	return "...." + header + strings.Repeat(".", pad) + "\n"
}

func renderText(w io.Writer, s Summary) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("Stack profiler:\n\n")

	bw.WriteString(dottedLine("Thread state distributions"))
	for _, st := range s.States {
		fmt.Fprintf(bw, "%5.1f%% %7s %s\n", st.Percent, "", st.Name)
	}
	bw.WriteString("\n")

	for _, st := range s.States {
		bw.WriteString(dottedLine("Thread state: " + st.Name))
		for _, stack := range st.Stacks {
			fmt.Fprintf(bw, "%5.1f%% %5.1f%% %s\n", stack.Percent, stack.StatePercent, stack.Frames[0])
			if len(stack.Frames) > 1 {
				for _, frame := range stack.Frames[1:] {
					fmt.Fprintf(bw, "%13s %s\n", "", frame)
				}
				bw.WriteString("\n")
			}
		}
		if st.Other != nil {
			fmt.Fprintf(bw, "%5.1f%% %5.1f%% %s\n", st.Other.Percent, st.Other.StatePercent, OtherLabel)
		}
		bw.WriteString("\n")
	}

	return bw.Flush()
}
