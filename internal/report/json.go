package report

import (
	"encoding/json"
	"io"
)

func renderJSON(w io.Writer, s Summary) error {
	if s.States == nil {
		s.States = []StateSummary{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
