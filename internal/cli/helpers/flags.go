package helpers

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/profiler"
	"github.com/coral-mesh/stackprof/internal/report"
)

// AddFormatFlag adds a standard --format/-o flag for report output.
func AddFormatFlag(cmd *cobra.Command, formatVar *string) {
	formats := report.Formats()
	description := fmt.Sprintf("Report format (%s)", strings.Join(formats, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", "", description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formats, cobra.ShellCompDirectiveNoFileComp
	})
}

// AddListFormatFlag adds --format/-o for tabular listings.
func AddListFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat), description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}

// ProfilerFlags are the sampler and report flags shared by run and sample.
type ProfilerFlags struct {
	format          string
	pprof           string
	lines           int
	top             int
	period          time.Duration
	detailLine      bool
	excludePackages bool
	excludeNames    string
	ignoredThreads  string
	metricsAddr     string
}

// AddProfilerFlags registers the sampler flags on cmd.
func AddProfilerFlags(cmd *cobra.Command) *ProfilerFlags {
	f := &ProfilerFlags{}
	AddFormatFlag(cmd, &f.format)
	flags := cmd.Flags()
	flags.StringVar(&f.pprof, "pprof", "", "Also write the profile to this file in pprof format")
	flags.IntVar(&f.lines, "lines", 0, "Stack frames recorded per sample")
	flags.IntVar(&f.top, "top", 0, "Stacks shown per thread state")
	flags.DurationVar(&f.period, "period", 0, "Sampling period")
	flags.BoolVar(&f.detailLine, "detail-line", false, "Record source line numbers")
	flags.BoolVar(&f.excludePackages, "exclude-packages", false, "Skip leading frames from excluded packages")
	flags.StringVar(&f.excludeNames, "exclude-package-names", "", "Comma-separated package prefixes to exclude")
	flags.StringVar(&f.ignoredThreads, "ignored-threads", "", "Comma-separated goroutine names never sampled")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve sampler metrics on this address while profiling")
	return f
}

// Apply copies the flags the user set onto cfg.
func (f *ProfilerFlags) Apply(flags *pflag.FlagSet, cfg *config.Config) {
	changed := flags.Changed
	if changed("format") {
		cfg.Report.Format = f.format
	}
	if changed("pprof") {
		cfg.Report.Pprof = f.pprof
	}
	if changed("lines") {
		cfg.Profiler.Lines = f.lines
	}
	if changed("top") {
		cfg.Profiler.Top = f.top
	}
	if changed("period") {
		cfg.Profiler.Period = f.period
	}
	if changed("detail-line") {
		cfg.Profiler.DetailLine = f.detailLine
	}
	if changed("exclude-packages") {
		cfg.Profiler.ExcludePackages = f.excludePackages
	}
	if changed("exclude-package-names") {
		cfg.Profiler.ExcludePackageNames = profiler.ParsePackageList(f.excludeNames)
	}
	if changed("ignored-threads") {
		cfg.Profiler.IgnoredThreads = profiler.ParsePackageList(f.ignoredThreads)
	}
	if changed("metrics-addr") {
		cfg.Profiler.MetricsAddr = f.metricsAddr
	}
}

// RunFlags are the benchmark parameter overrides.
type RunFlags struct {
	threads               string
	threadGroups          []int
	synchronize           bool
	forks                 int
	warmupForks           int
	warmupIterations      int
	warmupTime            time.Duration
	measurementIterations int
	measurementTime       time.Duration
	skipWarmup            bool
	skipMeasurement       bool
}

// AddRunFlags registers the parameter override flags on cmd.
func AddRunFlags(cmd *cobra.Command) *RunFlags {
	f := &RunFlags{}
	flags := cmd.Flags()
	flags.StringVarP(&f.threads, "threads", "t", "", `Benchmark threads (integer or "max")`)
	flags.IntSliceVar(&f.threadGroups, "thread-groups", nil, "Thread group ratios, e.g. 2,1")
	flags.BoolVar(&f.synchronize, "sync", true, "Start all threads of an iteration together")
	flags.IntVarP(&f.forks, "forks", "f", 0, "Measured forks")
	flags.IntVar(&f.warmupForks, "warmup-forks", 0, "Discarded warmup forks")
	flags.IntVar(&f.warmupIterations, "warmup-iterations", 0, "Warmup iterations")
	flags.DurationVar(&f.warmupTime, "warmup-time", 0, "Duration of each warmup iteration")
	flags.IntVarP(&f.measurementIterations, "iterations", "i", 0, "Measurement iterations")
	flags.DurationVar(&f.measurementTime, "time", 0, "Duration of each measurement iteration")
	flags.BoolVar(&f.skipWarmup, "skip-warmup", false, "Run no warmup iterations")
	flags.BoolVar(&f.skipMeasurement, "skip-measurement", false, "Run no measurement iterations")
	return f
}

// Apply copies the flags the user set onto cfg.Run.
func (f *RunFlags) Apply(flags *pflag.FlagSet, cfg *config.Config) {
	changed := flags.Changed
	run := &cfg.Run
	if changed("threads") {
		run.Threads = f.threads
	}
	if changed("thread-groups") {
		run.ThreadGroups = f.threadGroups
	}
	if changed("sync") {
		run.SynchronizeIterations = &f.synchronize
	}
	if changed("forks") {
		run.Forks = &f.forks
	}
	if changed("warmup-forks") {
		run.WarmupForks = &f.warmupForks
	}
	if changed("warmup-iterations") {
		run.WarmupIterations = &f.warmupIterations
	}
	if changed("warmup-time") {
		run.WarmupTime = f.warmupTime
	}
	if changed("iterations") {
		run.MeasurementIterations = &f.measurementIterations
	}
	if changed("time") {
		run.MeasurementTime = f.measurementTime
	}
	if changed("skip-warmup") {
		run.SkipWarmup = f.skipWarmup
	}
	if changed("skip-measurement") {
		run.SkipMeasurement = f.skipMeasurement
	}
}
