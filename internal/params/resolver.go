package params

import (
	"runtime"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/coral-mesh/stackprof/internal/constants"
)

// Defaults are the hard-coded values used when no other layer supplies one.
type Defaults struct {
	Threads                         int
	Forks                           int
	WarmupForks                     int
	WarmupIterations                int
	WarmupTime                      time.Duration
	MeasurementIterations           int
	MeasurementTime                 time.Duration
	SingleShotWarmupIterations      int
	SingleShotMeasurementIterations int
	SynchronizeIterations           bool
}

// StandardDefaults returns the built-in defaults.
func StandardDefaults() Defaults {
	return Defaults{
		Threads:                         constants.DefaultThreads,
		Forks:                           constants.DefaultForks,
		WarmupForks:                     constants.DefaultWarmupForks,
		WarmupIterations:                constants.DefaultWarmupIterations,
		WarmupTime:                      constants.DefaultWarmupTime,
		MeasurementIterations:           constants.DefaultMeasurementIterations,
		MeasurementTime:                 constants.DefaultMeasurementTime,
		SingleShotWarmupIterations:      constants.DefaultSingleShotWarmupIterations,
		SingleShotMeasurementIterations: constants.DefaultSingleShotMeasurementIterations,
		SynchronizeIterations:           constants.DefaultSynchronizeIterations,
	}
}

// Declared holds the settings a benchmark declares for itself. Integer
// fields use Unset (threads: ThreadsUnset) and durations use zero when the
// benchmark does not declare them; start from UnsetDeclared.
type Declared struct {
	Mode                  Mode
	Threads               int
	ThreadGroups          []int
	Forks                 int
	WarmupForks           int
	WarmupIterations      int
	WarmupTime            time.Duration
	MeasurementIterations int
	MeasurementTime       time.Duration
}

// UnsetDeclared returns a declaration with every field unset.
func UnsetDeclared() Declared {
	return Declared{
		Mode:                  ModeTimed,
		Threads:               ThreadsUnset,
		Forks:                 Unset,
		WarmupForks:           Unset,
		WarmupIterations:      Unset,
		MeasurementIterations: Unset,
	}
}

// Overrides are caller-supplied values (command line, global run options)
// that take precedence over declarations. Start from NoOverrides.
type Overrides struct {
	Threads               int
	ThreadGroups          []int
	SynchronizeIterations *bool
	Forks                 int
	WarmupForks           int
	WarmupIterations      int
	WarmupTime            time.Duration
	MeasurementIterations int
	MeasurementTime       time.Duration

	// SkipWarmup and SkipMeasurement disable a phase entirely; the phase
	// resolves to an empty window.
	SkipWarmup      bool
	SkipMeasurement bool
}

// NoOverrides returns overrides with every field unset.
func NoOverrides() Overrides {
	return Overrides{
		Threads:               ThreadsUnset,
		Forks:                 Unset,
		WarmupForks:           Unset,
		WarmupIterations:      Unset,
		MeasurementIterations: Unset,
	}
}

// Resolver resolves BenchmarkParams. Parallelism is consulted only when
// MaxThreads is requested.
type Resolver struct {
	Parallelism func() int
}

// NewResolver returns a resolver that sizes MaxThreads from the host.
func NewResolver() *Resolver {
	return &Resolver{Parallelism: HostParallelism}
}

// Resolve resolves parameters with a host-backed resolver.
func Resolve(defaults Defaults, declared Declared, overrides Overrides) (BenchmarkParams, error) {
	return NewResolver().Resolve(defaults, declared, overrides)
}

// HostParallelism returns the number of logical CPUs available.
func HostParallelism() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Resolve applies override > declared > default precedence to every
// parameter. Warmup and measurement windows are resolved independently.
func (r *Resolver) Resolve(defaults Defaults, declared Declared, overrides Overrides) (BenchmarkParams, error) {
	if err := checkSentinels(declared, overrides); err != nil {
		return BenchmarkParams{}, err
	}

	groups := mergeThreadGroups(overrides.ThreadGroups, declared.ThreadGroups)
	if len(groups) == 0 {
		groups = []int{1}
	}
	if err := validateGroups(groups); err != nil {
		return BenchmarkParams{}, err
	}

	threads, err := r.resolveThreads(defaults, declared, overrides)
	if err != nil {
		return BenchmarkParams{}, err
	}
	threads = roundUp(threads, sumGroups(groups))

	synchronize := defaults.SynchronizeIterations
	if overrides.SynchronizeIterations != nil {
		synchronize = *overrides.SynchronizeIterations
	}

	v := Values{
		Mode:                  declared.Mode,
		SynchronizeIterations: synchronize,
		Threads:               threads,
		ThreadGroups:          groups,
		Forks:                 pickInt(overrides.Forks, declared.Forks, defaults.Forks),
		WarmupForks:           pickInt(overrides.WarmupForks, declared.WarmupForks, defaults.WarmupForks),
	}

	if !overrides.SkipWarmup {
		v.Warmup = resolveWindow(declared.Mode,
			overrides.WarmupIterations, declared.WarmupIterations,
			defaults.WarmupIterations, defaults.SingleShotWarmupIterations,
			overrides.WarmupTime, declared.WarmupTime, defaults.WarmupTime)
	}
	if !overrides.SkipMeasurement {
		v.Measurement = resolveWindow(declared.Mode,
			overrides.MeasurementIterations, declared.MeasurementIterations,
			defaults.MeasurementIterations, defaults.SingleShotMeasurementIterations,
			overrides.MeasurementTime, declared.MeasurementTime, defaults.MeasurementTime)
	}

	return New(v)
}

func (r *Resolver) resolveThreads(defaults Defaults, declared Declared, overrides Overrides) (int, error) {
	threads := defaults.Threads
	if declared.Threads != ThreadsUnset {
		threads = declared.Threads
	}
	if overrides.Threads != ThreadsUnset {
		threads = overrides.Threads
	}
	if threads == MaxThreads {
		parallelism := HostParallelism
		if r != nil && r.Parallelism != nil {
			parallelism = r.Parallelism
		}
		threads = parallelism()
	}
	if threads < 1 {
		return 0, newConfigError("threads", "must be at least 1 or max, got %d", threads)
	}
	return threads, nil
}

// resolveWindow resolves one phase. Single-shot windows take only a count,
// falling back to the single-shot default; timed windows resolve count and
// duration independently.
func resolveWindow(mode Mode, overrideCount, declaredCount, timedDefault, singleShotDefault int,
	overrideTime, declaredTime, defaultTime time.Duration) IterationWindow {
	if mode == ModeSingleShot {
		return IterationWindow{Count: pickInt(overrideCount, declaredCount, singleShotDefault)}
	}
	return IterationWindow{
		Count:    pickInt(overrideCount, declaredCount, timedDefault),
		Duration: pickDuration(overrideTime, declaredTime, defaultTime),
	}
}

// mergeThreadGroups lets the trivial single group [1] yield to the other
// source, so a global single-group setting cannot erase a benchmark's own
// grouping and vice versa. Otherwise first wins.
func mergeThreadGroups(first, second []int) []int {
	if isTrivialGroups(first) {
		if len(second) == 0 {
			return slices.Clone(first)
		}
		return slices.Clone(second)
	}
	return slices.Clone(first)
}

func isTrivialGroups(groups []int) bool {
	return len(groups) == 0 || (len(groups) == 1 && groups[0] == 1)
}

func pickInt(override, declared, def int) int {
	if override >= 0 {
		return override
	}
	if declared >= 0 {
		return declared
	}
	return def
}

func pickDuration(override, declared, def time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if declared > 0 {
		return declared
	}
	return def
}

func roundUp(n, multiple int) int {
	if multiple <= 0 {
		return n
	}
	return (n + multiple - 1) / multiple * multiple
}

// checkSentinels rejects negative values that are not one of the markers.
func checkSentinels(declared Declared, overrides Overrides) error {
	ints := []struct {
		field string
		value int
	}{
		{"forks", overrides.Forks},
		{"warmup_forks", overrides.WarmupForks},
		{"warmup.iterations", overrides.WarmupIterations},
		{"measurement.iterations", overrides.MeasurementIterations},
		{"benchmark.forks", declared.Forks},
		{"benchmark.warmup_forks", declared.WarmupForks},
		{"benchmark.warmup.iterations", declared.WarmupIterations},
		{"benchmark.measurement.iterations", declared.MeasurementIterations},
	}
	for _, f := range ints {
		if f.value < Unset {
			return newConfigError(f.field, "must be %d (unset) or non-negative, got %d", Unset, f.value)
		}
	}

	threads := []struct {
		field string
		value int
	}{
		{"threads", overrides.Threads},
		{"benchmark.threads", declared.Threads},
	}
	for _, f := range threads {
		if f.value < MaxThreads {
			return newConfigError(f.field, "must be positive, %d (max) or %d (unset), got %d",
				MaxThreads, ThreadsUnset, f.value)
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"warmup.time", overrides.WarmupTime},
		{"measurement.time", overrides.MeasurementTime},
		{"benchmark.warmup.time", declared.WarmupTime},
		{"benchmark.measurement.time", declared.MeasurementTime},
	}
	for _, f := range durations {
		if f.value < 0 {
			return newConfigError(f.field, "must not be negative, got %s", f.value)
		}
	}
	return nil
}
