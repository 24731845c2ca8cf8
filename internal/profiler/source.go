package profiler

import (
	"context"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// ThreadSource enumerates the live threads of the monitored process. It is
// called once per sampling tick from the sampling goroutine.
type ThreadSource interface {
	ListThreads(ctx context.Context) ([]Thread, error)
}

// Thread is one enumerated thread. Inspect may race with the thread's
// termination and then returns ErrThreadExited.
type Thread interface {
	Name() string
	Inspect() (ThreadInfo, error)
}

// ThreadInfo is the execution state and call stack of a thread, most recent
// call first.
type ThreadInfo struct {
	State  stacks.ThreadState
	Frames []stacks.Frame
}

// ThreadSnapshot is a Thread whose state was captured at enumeration time.
type ThreadSnapshot struct {
	ThreadName string
	Info       ThreadInfo
}

func (t ThreadSnapshot) Name() string { return t.ThreadName }

func (t ThreadSnapshot) Inspect() (ThreadInfo, error) { return t.Info, nil }

// ThreadSourceFunc adapts a function to ThreadSource.
type ThreadSourceFunc func(ctx context.Context) ([]Thread, error)

func (f ThreadSourceFunc) ListThreads(ctx context.Context) ([]Thread, error) {
	return f(ctx)
}
