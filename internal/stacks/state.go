// Package stacks holds the sampled-stack data model: thread execution
// states, frames, stack records, and the per-state frequency table that is
// produced by one sampling pass and merged across passes.
package stacks

import (
	"fmt"
	"strings"
)

// ThreadState is the coarse scheduler-visible state of a thread at capture
// time.
type ThreadState uint8

const (
	StateNew ThreadState = iota
	StateRunnable
	StateBlocked
	StateWaiting
	StateTimedWaiting
	StateTerminated
)

// AllStates lists every state in declaration order.
var AllStates = []ThreadState{
	StateNew,
	StateRunnable,
	StateBlocked,
	StateWaiting,
	StateTimedWaiting,
	StateTerminated,
}

var stateNames = [...]string{
	StateNew:          "NEW",
	StateRunnable:     "RUNNABLE",
	StateBlocked:      "BLOCKED",
	StateWaiting:      "WAITING",
	StateTimedWaiting: "TIMED_WAITING",
	StateTerminated:   "TERMINATED",
}

func (s ThreadState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

// Valid reports whether s is one of the declared states.
func (s ThreadState) Valid() bool {
	return int(s) < len(stateNames)
}

// ParseThreadState parses the upper-case state name produced by String.
func ParseThreadState(name string) (ThreadState, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return ThreadState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown thread state %q", name)
}
