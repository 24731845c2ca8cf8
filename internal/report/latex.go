package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var latexEscaper = strings.NewReplacer("_", `\_`)

func escapeLaTeX(s string) string {
	return latexEscaper.Replace(s)
}

func renderLaTeX(w io.Writer, s Summary) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("\\begin{tabular}{r r l}\n")
	bw.WriteString("\\multicolumn{3}{l}{\\textbf{Thread state distributions}} \\\\\n")
	for _, st := range s.States {
		fmt.Fprintf(bw, "%.1f\\%% & & %s \\\\\n", st.Percent, escapeLaTeX(st.Name))
	}

	for _, st := range s.States {
		bw.WriteString("\\hline\n")
		fmt.Fprintf(bw, "\\multicolumn{3}{l}{\\textbf{Thread state: %s}} \\\\\n", escapeLaTeX(st.Name))
		for _, stack := range st.Stacks {
			fmt.Fprintf(bw, "%.1f\\%% & %.1f\\%% & \\texttt{%s} \\\\\n",
				stack.Percent, stack.StatePercent, escapeLaTeX(stack.Frames[0]))
			for _, frame := range stack.Frames[1:] {
				fmt.Fprintf(bw, " & & \\texttt{%s} \\\\\n", escapeLaTeX(frame))
			}
		}
		if st.Other != nil {
			fmt.Fprintf(bw, "%.1f\\%% & %.1f\\%% & %s \\\\\n",
				st.Other.Percent, st.Other.StatePercent, "\\textless{}other\\textgreater{}")
		}
	}
	bw.WriteString("\\end{tabular}\n")

	return bw.Flush()
}
