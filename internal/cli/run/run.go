// Package run implements the run command: execute a benchmark workload
// in-process with the stack profiler attached and render the result.
package run

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/helpers"
	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/duckdb"
	errs "github.com/coral-mesh/stackprof/internal/errors"
	"github.com/coral-mesh/stackprof/internal/profiler"
	"github.com/coral-mesh/stackprof/internal/runner"
	"github.com/coral-mesh/stackprof/internal/storage"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		mode  string
		store bool
	)

	cmd := &cobra.Command{
		Use:   "run <benchmark>",
		Short: "Run a benchmark with the stack profiler attached",
		Long: `Run a benchmark in-process and sample goroutine stacks during every
measurement iteration.

The benchmark is looked up in the benchmarks section of stackprof.yaml; its
workload names one of the built-in workloads (` + fmt.Sprint(runner.Workloads()) + `).
A benchmark that is not configured runs the workload of the same name with
default parameters.

Parameters resolve as flag > benchmark declaration > built-in default.

Examples:
  # Contended mutex, 8 threads, 3 forks of 5 iterations
  stackprof run lock --threads 8 --forks 3 --iterations 5 --time 200ms

  # Two thread groups, deeper stacks, without runtime frames
  stackprof run chan --threads 6 --thread-groups 2,1 --lines 4 --exclude-packages

  # Flamegraph input
  stackprof run spin --format folded | flamegraph.pl > spin.svg`,
		Args: cobra.ExactArgs(1),
	}

	pf := helpers.AddProfilerFlags(cmd)
	rf := helpers.AddRunFlags(cmd)
	cmd.Flags().StringVar(&mode, "mode", "", "Benchmark mode (timed, single-shot)")
	cmd.Flags().BoolVar(&store, "store", false, "Persist the run in the results database")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		name := args[0]
		env, err := helpers.LoadEnv(cmd, func(cfg *config.Config) {
			pf.Apply(cmd.Flags(), cfg)
			rf.Apply(cmd.Flags(), cfg)
			if cmd.Flags().Changed("store") {
				cfg.Storage.Enabled = store
			}
			if cmd.Flags().Changed("mode") {
				b := cfg.Benchmark(name)
				b.Mode = mode
				if cfg.Benchmarks == nil {
					cfg.Benchmarks = map[string]config.BenchmarkConfig{}
				}
				cfg.Benchmarks[name] = b
			}
		})
		if err != nil {
			return err
		}
		return execute(cmd, env, name)
	}

	return cmd
}

func execute(cmd *cobra.Command, env *helpers.Env, name string) error {
	ctx := cmd.Context()
	cfg := env.Config
	logger := env.Logger

	bench := cfg.Benchmark(name)
	workload := bench.Workload
	if workload == "" {
		workload = name
	}
	factory, err := runner.LookupWorkload(workload)
	if err != nil {
		return err
	}

	p, err := helpers.ResolveParams(cfg, name)
	if err != nil {
		return err
	}

	prof, stopMetrics, err := env.NewProfiler(profiler.NewGoroutineSource())
	if err != nil {
		return err
	}
	defer stopMetrics()
	desc := prof.Describe()
	logger.Debug().Str("profiler", desc.Label).Msg(desc.Text)

	var opts []runner.Option
	var sink *storage.Storage
	var run *storage.Run
	if cfg.Storage.Enabled {
		db, err := duckdb.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open results database: %w", err)
		}
		defer errs.DeferClose(logger, db, "Failed to close results database")

		sink, err = storage.NewStorage(db, logger)
		if err != nil {
			return err
		}

		paramsJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode parameters: %w", err)
		}
		run = &storage.Run{
			Benchmark: name,
			Workload:  workload,
			Profiler:  prof.Label(),
			Params:    string(paramsJSON),
			Host:      hostDescription(ctx),
		}
		if err := sink.CreateRun(ctx, run); err != nil {
			return err
		}
		opts = append(opts, runner.WithSink(sink, run.ID))
		logger.Info().Str("run_id", run.ID).Str("db", cfg.Storage.Path).Msg("Storing run")
	}

	result, runErr := runner.New(prof, logger, opts...).
		Run(ctx, runner.Benchmark{Name: name, Workload: factory}, p)
	if result == nil {
		return runErr
	}

	if run != nil {
		if err := sink.FinishRun(ctx, run.ID, result.Total.Total()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run total")
		}
	}

	if err := env.WriteReport(cmd.OutOrStdout(), result.Total); err != nil {
		return err
	}
	return runErr
}

func hostDescription(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s/%s %s)", info.Hostname, info.OS, info.KernelArch, info.PlatformVersion)
}
