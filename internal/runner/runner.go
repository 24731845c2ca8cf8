// Package runner drives benchmark iterations in-process: forks, warmup and
// measurement windows, and the thread layout of the resolved parameters,
// with a profiler engaged around every measurement iteration.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/stacks"
	"github.com/coral-mesh/stackprof/internal/storage"
)

// IterationProfiler is engaged around each measurement iteration.
type IterationProfiler interface {
	Label() string
	BeforeIteration(ctx context.Context, p params.BenchmarkParams, w params.IterationWindow) error
	AfterIteration(p params.BenchmarkParams, w params.IterationWindow) (*stacks.Table, error)
}

// Sink receives the table of every measurement iteration.
type Sink interface {
	StoreTable(ctx context.Context, key storage.SampleKey, table *stacks.Table) error
}

// Benchmark is a named workload.
type Benchmark struct {
	Name     string
	Workload Factory
}

// Result holds the profile of a run.
type Result struct {
	Params params.BenchmarkParams

	// Forks holds the aggregated table of each measured fork, warmup forks
	// excluded.
	Forks []*stacks.Table

	// Total aggregates all measured forks.
	Total *stacks.Table

	Iterations int   // measurement iterations completed
	Operations int64 // workload invocations during measurement
	Elapsed    time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink stores every measurement iteration under runID.
func WithSink(sink Sink, runID string) Option {
	return func(r *Runner) {
		r.sink = sink
		r.runID = runID
	}
}

// Runner executes benchmarks with a profiler attached.
type Runner struct {
	profiler IterationProfiler
	logger   zerolog.Logger
	sink     Sink
	runID    string
}

// New creates a runner. A nil profiler runs the workload unprofiled.
func New(profiler IterationProfiler, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		profiler: profiler,
		logger:   logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes all forks of bench. On failure the result holds the forks
// completed so far.
func (r *Runner) Run(ctx context.Context, bench Benchmark, p params.BenchmarkParams) (*Result, error) {
	if bench.Workload == nil {
		return nil, fmt.Errorf("benchmark %q has no workload", bench.Name)
	}

	started := time.Now()
	result := &Result{Params: p}
	defer func() {
		result.Total = stacks.Aggregate(result.Forks...)
		result.Elapsed = time.Since(started)
	}()

	logger := r.logger.With().Str("benchmark", bench.Name).Logger()
	logger.Info().
		Int("threads", p.Threads()).
		Ints("thread_groups", p.ThreadGroups()).
		Int("forks", p.Forks()).
		Int("warmup_forks", p.WarmupForks()).
		Str("warmup", p.Warmup().String()).
		Str("measurement", p.Measurement().String()).
		Msg("Benchmark started")

	total := p.WarmupForks() + p.Forks()
	for fork := 0; fork < total; fork++ {
		warmupFork := fork < p.WarmupForks()
		f := forkRun{
			runner:   r,
			logger:   logger.With().Int("fork", fork+1).Bool("warmup_fork", warmupFork).Logger(),
			params:   p,
			workload: bench.Workload(),
			index:    fork - p.WarmupForks(),
			profile:  !warmupFork,
		}

		table, iterations, ops, err := f.run(ctx)
		if !warmupFork {
			result.Forks = append(result.Forks, table)
			result.Iterations += iterations
			result.Operations += ops
		}
		if err != nil {
			return result, fmt.Errorf("fork %d of %d: %w", fork+1, total, err)
		}
	}

	logger.Info().
		Int("iterations", result.Iterations).
		Int64("operations", result.Operations).
		Dur("elapsed", time.Since(started)).
		Msg("Benchmark finished")
	return result, nil
}

type forkRun struct {
	runner   *Runner
	logger   zerolog.Logger
	params   params.BenchmarkParams
	workload Workload
	index    int // measured fork index, negative for warmup forks
	profile  bool
}

// run executes the warmup then measurement windows of one fork and
// aggregates its measurement tables.
func (f *forkRun) run(ctx context.Context) (*stacks.Table, int, int64, error) {
	var (
		tables []*stacks.Table
		ops    int64
	)

	warmup := f.params.Warmup()
	for i := 0; i < warmup.Count; i++ {
		n, err := runThreads(ctx, f.workload, f.params, warmup)
		if err != nil {
			return stacks.Aggregate(), 0, 0, fmt.Errorf("warmup iteration %d: %w", i+1, err)
		}
		f.logger.Debug().Int("iteration", i+1).Int64("operations", n).Msg("Warmup iteration finished")
	}

	measurement := f.params.Measurement()
	for i := 0; i < measurement.Count; i++ {
		table, n, err := f.measure(ctx, measurement)
		if table != nil {
			tables = append(tables, table)
		}
		ops += n
		if err != nil {
			return stacks.Aggregate(tables...), len(tables), ops, fmt.Errorf("measurement iteration %d: %w", i+1, err)
		}

		if f.profile && f.runner.sink != nil && table != nil {
			key := storage.SampleKey{
				RunID:     f.runner.runID,
				Fork:      f.index,
				Iteration: i,
				Phase:     storage.PhaseMeasurement,
			}
			if err := f.runner.sink.StoreTable(ctx, key, table); err != nil {
				return stacks.Aggregate(tables...), len(tables), ops, fmt.Errorf("failed to store iteration %d: %w", i+1, err)
			}
		}

		event := f.logger.Info().Int("iteration", i+1).Int64("operations", n)
		if table != nil {
			event = event.Int64("samples", table.Total())
		}
		event.Msg("Measurement iteration finished")
	}

	return stacks.Aggregate(tables...), len(tables), ops, nil
}

// measure runs one measurement iteration with the profiler engaged. The
// profiler is always stopped once started, even when the workload fails.
func (f *forkRun) measure(ctx context.Context, window params.IterationWindow) (*stacks.Table, int64, error) {
	prof := f.runner.profiler
	if !f.profile || prof == nil {
		n, err := runThreads(ctx, f.workload, f.params, window)
		return nil, n, err
	}

	if err := prof.BeforeIteration(ctx, f.params, window); err != nil {
		return nil, 0, fmt.Errorf("profiler %s: %w", prof.Label(), err)
	}
	n, runErr := runThreads(ctx, f.workload, f.params, window)
	table, profErr := prof.AfterIteration(f.params, window)
	if profErr != nil {
		profErr = fmt.Errorf("profiler %s: %w", prof.Label(), profErr)
	}
	return table, n, errors.Join(runErr, profErr)
}

// runThreads runs one iteration on all benchmark threads and returns the
// number of workload invocations.
func runThreads(ctx context.Context, wl Workload, p params.BenchmarkParams, window params.IterationWindow) (int64, error) {
	var (
		ops      atomic.Int64
		start    chan struct{}
		deadline time.Time
	)
	if p.SynchronizeIterations() {
		start = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	thread := 0
	for group, size := range p.GroupSizes() {
		for j := 0; j < size; j++ {
			w := Worker{Thread: thread, Group: group, GroupThread: j}
			thread++

			g.Go(func() error {
				end := time.Now().Add(window.Duration)
				if start != nil {
					select {
					case <-start:
						end = deadline
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return invoke(gctx, wl, w, window, end, &ops)
			})
		}
	}

	if start != nil {
		deadline = time.Now().Add(window.Duration)
		close(start)
	}
	err := g.Wait()
	return ops.Load(), err
}

// invoke calls the workload once in single-shot windows, or repeatedly
// until end in timed ones.
func invoke(ctx context.Context, wl Workload, w Worker, window params.IterationWindow, end time.Time, ops *atomic.Int64) error {
	if !window.Timed() {
		ops.Add(1)
		return wl.Invoke(ctx, w)
	}

	runCtx, cancel := context.WithDeadline(ctx, end)
	defer cancel()

	for runCtx.Err() == nil {
		err := wl.Invoke(runCtx, w)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		ops.Add(1)
	}
	return ctx.Err()
}
