// Package report renders aggregated stack tables: the ranked text report
// with its 0.1% significance cut-off, plus LaTeX, folded-stack, JSON and
// pprof forms of the same data.
package report

import (
	"fmt"
	"strings"
)

// Format selects an output form.
type Format int

const (
	FormatText Format = iota
	FormatLaTeX
	FormatSilent
	FormatFolded
	FormatJSON
)

var formatNames = [...]string{
	FormatText:   "text",
	FormatLaTeX:  "latex",
	FormatSilent: "silent",
	FormatFolded: "folded",
	FormatJSON:   "json",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Formats lists the supported format names.
func Formats() []string {
	return append([]string(nil), formatNames[:]...)
}

// ParseFormat parses a format name. An empty name is FormatText.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FormatText, nil
	}
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	return FormatText, fmt.Errorf("unknown report format %q (want one of %s)", name, strings.Join(Formats(), ", "))
}
