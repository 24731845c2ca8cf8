package runner

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Worker identifies the benchmark thread running an invocation.
type Worker struct {
	Thread      int // index across all threads
	Group       int // thread group index
	GroupThread int // index within the group
}

// Workload is a benchmark body. Invoke is called once per operation and
// must return promptly once ctx is done.
type Workload interface {
	Invoke(ctx context.Context, w Worker) error
}

// WorkloadFunc adapts a function to Workload.
type WorkloadFunc func(ctx context.Context, w Worker) error

func (f WorkloadFunc) Invoke(ctx context.Context, w Worker) error {
	return f(ctx, w)
}

// Factory builds a fresh workload instance. Each fork gets its own, so no
// state carries over between forks.
type Factory func() Workload

var builtins = map[string]Factory{
	"spin":  newSpinWorkload,
	"lock":  newLockWorkload,
	"sleep": newSleepWorkload,
	"chan":  newChanWorkload,
}

// Workloads returns the names of the built-in workloads.
func Workloads() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// LookupWorkload returns the factory of a built-in workload.
func LookupWorkload(name string) (Factory, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown workload %q (available: %v)", name, Workloads())
	}
	return f, nil
}

// spinSink keeps the spin loop from being optimized away.
var spinSink atomic.Uint64

func spin(rounds int) {
	x := uint64(rounds) | 1
	for i := 0; i < rounds; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	spinSink.Add(x)
}

// newSpinWorkload keeps every thread on CPU.
func newSpinWorkload() Workload {
	return WorkloadFunc(func(ctx context.Context, _ Worker) error {
		spin(1 << 14)
		return nil
	})
}

// newLockWorkload makes threads contend for one mutex held across a short
// spin, so most threads sit blocked on Lock.
func newLockWorkload() Workload {
	var mu sync.Mutex
	return WorkloadFunc(func(ctx context.Context, _ Worker) error {
		mu.Lock()
		spin(1 << 12)
		mu.Unlock()
		return nil
	})
}

// newSleepWorkload parks threads in time.Sleep.
func newSleepWorkload() Workload {
	return WorkloadFunc(func(ctx context.Context, _ Worker) error {
		time.Sleep(time.Millisecond)
		return ctx.Err()
	})
}

// newChanWorkload pairs threads over an unbuffered channel. An unmatched
// thread gives up after a short wait.
func newChanWorkload() Workload {
	ch := make(chan struct{})
	return WorkloadFunc(func(ctx context.Context, _ Worker) error {
		timer := time.NewTimer(5 * time.Millisecond)
		defer timer.Stop()

		select {
		case ch <- struct{}{}:
		case <-ch:
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}
