package profiler

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSampling is returned by Stop when no sampling cycle is active.
	ErrNotSampling = errors.New("stack profiler is not sampling")

	// ErrAlreadySampling is returned by Start while a cycle is active.
	ErrAlreadySampling = errors.New("stack profiler is already sampling")

	// ErrThreadExited is returned by Thread.Inspect when the thread
	// terminated after it was enumerated. The sampler skips such threads.
	ErrThreadExited = errors.New("thread exited before inspection")
)

// FatalError reports an unexpected failure inside the sampling loop. The
// loop stops at the first one; samples taken before it are kept.
type FatalError struct {
	Err   error
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("stack profiler: sampling aborted: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
