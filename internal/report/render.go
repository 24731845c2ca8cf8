package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Render writes table to w in the given format.
func Render(w io.Writer, format Format, table *stacks.Table, opts Options) error {
	switch format {
	case FormatText:
		return renderText(w, Summarize(table, opts))
	case FormatLaTeX:
		return renderLaTeX(w, Summarize(table, opts))
	case FormatSilent:
		return nil
	case FormatFolded:
		return renderFolded(w, table)
	case FormatJSON:
		return renderJSON(w, Summarize(table, opts))
	default:
		return fmt.Errorf("unsupported report format %s", format)
	}
}

// String renders the text report.
func String(table *stacks.Table, opts Options) string {
	var b strings.Builder
	_ = renderText(&b, Summarize(table, opts))
	return b.String()
}
