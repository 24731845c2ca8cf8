package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/coral-mesh/stackprof/internal/logging"
	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/profiler"
)

// ParseThreads parses a thread count as written in configuration: empty
// means unset and "max" selects host parallelism.
func ParseThreads(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return params.ThreadsUnset, nil
	case "max":
		return params.MaxThreads, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("threads must be a positive integer or \"max\", got %q: %w", s, params.ErrConfig)
	}
	return n, nil
}

// Overrides converts the run section into resolver overrides.
func (r RunConfig) Overrides() (params.Overrides, error) {
	o := params.NoOverrides()

	threads, err := ParseThreads(r.Threads)
	if err != nil {
		return o, err
	}
	if err := validateThreadGroups(r.ThreadGroups); err != nil {
		return o, err
	}

	o.Threads = threads
	o.ThreadGroups = slices.Clone(r.ThreadGroups)
	o.SynchronizeIterations = r.SynchronizeIterations
	o.Forks = intOrUnset(r.Forks)
	o.WarmupForks = intOrUnset(r.WarmupForks)
	o.WarmupIterations = intOrUnset(r.WarmupIterations)
	o.WarmupTime = r.WarmupTime
	o.MeasurementIterations = intOrUnset(r.MeasurementIterations)
	o.MeasurementTime = r.MeasurementTime
	o.SkipWarmup = r.SkipWarmup
	o.SkipMeasurement = r.SkipMeasurement
	return o, nil
}

// Declared converts a benchmark section into a resolver declaration.
func (b BenchmarkConfig) Declared() (params.Declared, error) {
	d := params.UnsetDeclared()

	mode, err := params.ParseMode(b.Mode)
	if err != nil {
		return d, fmt.Errorf("%w: %w", params.ErrConfig, err)
	}
	threads, err := ParseThreads(b.Threads)
	if err != nil {
		return d, err
	}
	if err := validateThreadGroups(b.ThreadGroups); err != nil {
		return d, err
	}

	d.Mode = mode
	d.Threads = threads
	d.ThreadGroups = slices.Clone(b.ThreadGroups)
	d.Forks = intOrUnset(b.Forks)
	d.WarmupForks = intOrUnset(b.WarmupForks)
	d.WarmupIterations = intOrUnset(b.Warmup.Iterations)
	d.WarmupTime = b.Warmup.Time
	d.MeasurementIterations = intOrUnset(b.Measurement.Iterations)
	d.MeasurementTime = b.Measurement.Time
	return d, nil
}

// Sampler converts the profiler section into sampler settings.
func (p ProfilerConfig) Sampler() profiler.Config {
	return profiler.Config{
		StackLines:          p.Lines,
		TopStacks:           p.Top,
		Period:              p.Period,
		DetailLine:          p.DetailLine,
		ExcludePackages:     p.ExcludePackages,
		ExcludePackageNames: slices.Clone(p.ExcludePackageNames),
		IgnoredThreads:      slices.Clone(p.IgnoredThreads),
	}
}

// Logger converts the logging section into logger settings.
func (l LoggingConfig) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	if l.Level != "" {
		cfg.Level = l.Level
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	return cfg
}

func intOrUnset(p *int) int {
	if p == nil {
		return params.Unset
	}
	return *p
}
