package stacks

import (
	"strconv"
	"strings"
)

// EmptyStackLine stands in for a stack whose frames were all filtered out.
const EmptyStackLine = "<stack is empty, everything is filtered?>"

// Frame is one call frame. Origin is the package path (or namespace) the
// function belongs to, Method the rest of the qualified name. Line is zero
// when unknown.
type Frame struct {
	Origin string
	Method string
	Line   int
}

// Symbol renders the frame as Origin.Method, with :Line appended when
// withLine is set and the line is known.
func (f Frame) Symbol(withLine bool) string {
	var b strings.Builder
	if f.Origin != "" {
		b.WriteString(f.Origin)
		b.WriteByte('.')
	}
	b.WriteString(f.Method)
	if withLine && f.Line > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
	}
	return b.String()
}

// FrameFromFunc splits a fully qualified Go function name such as
// "github.com/x/y.(*T).M" into origin "github.com/x/y" and method "(*T).M".
func FrameFromFunc(name string, line int) Frame {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return Frame{Method: name, Line: line}
	}
	split := slash + 1 + dot
	return Frame{Origin: name[:split], Method: name[split+1:], Line: line}
}

// Record is one sampled stack: frame identifiers, most recent call first.
// It is a comparable value so it can key a multiset.
type Record string

// NewRecord builds a record from frame identifiers.
func NewRecord(lines ...string) Record {
	return Record(strings.Join(lines, "\n"))
}

// Lines returns the frame identifiers of the record.
func (r Record) Lines() []string {
	if r == "" {
		return nil
	}
	return strings.Split(string(r), "\n")
}

// Top returns the most recent frame.
func (r Record) Top() string {
	if i := strings.IndexByte(string(r), '\n'); i >= 0 {
		return string(r[:i])
	}
	return string(r)
}
