// Package constants defines shared configuration constants and defaults.
package constants

import "time"

// Benchmark parameter defaults, used when neither an override nor a
// benchmark declaration supplies a value.
const (
	// DefaultWarmupIterations is the warmup iteration count for timed benchmarks.
	DefaultWarmupIterations = 20

	// DefaultWarmupTime is the duration of one warmup iteration.
	DefaultWarmupTime = 1 * time.Second

	// DefaultMeasurementIterations is the measurement iteration count for timed benchmarks.
	DefaultMeasurementIterations = 20

	// DefaultMeasurementTime is the duration of one measurement iteration.
	DefaultMeasurementTime = 1 * time.Second

	// DefaultSingleShotWarmupIterations is the warmup count for single-shot benchmarks.
	DefaultSingleShotWarmupIterations = 0

	// DefaultSingleShotMeasurementIterations is the measurement count for single-shot benchmarks.
	DefaultSingleShotMeasurementIterations = 1

	// DefaultForks is the number of measured forks.
	DefaultForks = 10

	// DefaultWarmupForks is the number of discarded warmup forks.
	DefaultWarmupForks = 0

	// DefaultThreads is the benchmark thread count.
	DefaultThreads = 1

	// DefaultSynchronizeIterations makes worker threads enter each iteration together.
	DefaultSynchronizeIterations = true
)

// Stack profiler defaults.
const (
	// DefaultStackLines is the number of frames retained per sample.
	DefaultStackLines = 1

	// DefaultTopStacks is the number of stacks reported per thread state.
	DefaultTopStacks = 10

	// DefaultSamplePeriod is the pause between two sampling ticks.
	DefaultSamplePeriod = 10 * time.Millisecond

	// MaxStackLines caps StackLines so a misconfiguration cannot blow up memory.
	MaxStackLines = 1024
)

// DefaultExcludedPackages are the prefixes dropped from the top of a stack
// when package exclusion is enabled and no explicit list is given. They are
// matched against "origin." so a trailing dot pins a whole package and a
// trailing slash its subpackages.
var DefaultExcludedPackages = []string{
	"runtime.",
	"runtime/",
	"internal/",
	"sync.",
	"sync/",
	"syscall.",
	"testing.",
	"os/signal.",
	"time.",
}

// DefaultIgnoredThreads are goroutine names skipped by the sampler: the
// harness entry point, well-known runtime helper goroutines and the
// watchers started by signal.NotifyContext and context.WithDeadline.
var DefaultIgnoredThreads = []string{
	"main.main",
	"os/signal.loop",
	"os/signal.NotifyContext.func1",
	"context.WithDeadlineCause.func2",
	"runtime/pprof.profileWriter",
	"runtime.ensureSigM.func1",
}

// Remote sampling defaults.
const (
	// DefaultRemoteTimeout bounds a single goroutine dump request.
	DefaultRemoteTimeout = 5 * time.Second

	// DefaultProbeRetries is the number of attempts made to reach a remote target before sampling.
	DefaultProbeRetries = 3

	// DefaultProbeBackoff is the initial backoff between probe attempts.
	DefaultProbeBackoff = 200 * time.Millisecond
)
