// Package sample implements the sample command: profile a running Go
// process through its net/http/pprof goroutine endpoint.
package sample

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/helpers"
	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/profiler"
	"github.com/coral-mesh/stackprof/internal/retry"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// NewSampleCmd creates the sample command.
func NewSampleCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sample [benchmark]",
		Short: "Sample goroutine stacks of a remote Go process",
		Long: `Sample the goroutines of a running Go process that serves net/http/pprof.

Sampling runs for each measurement iteration of the resolved parameters
(a timed window is required); the iterations are aggregated into one report.
Warmup iterations and forks do not apply to a remote process.

Examples:
  # 5 iterations of 2s against a local service
  stackprof sample --url http://localhost:6060/debug/pprof --iterations 5 --time 2s

  # Deeper stacks with line numbers, JSON output
  stackprof sample --url http://api:6060/debug/pprof --lines 5 --detail-line -o json`,
		Args: cobra.MaximumNArgs(1),
	}

	pf := helpers.AddProfilerFlags(cmd)
	rf := helpers.AddRunFlags(cmd)
	cmd.Flags().StringVar(&url, "url", "", "Base URL of the pprof handler (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Timeout of a single dump request")
	_ = cmd.MarkFlagRequired("url")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		env, err := helpers.LoadEnv(cmd, func(cfg *config.Config) {
			pf.Apply(cmd.Flags(), cfg)
			rf.Apply(cmd.Flags(), cfg)
			if cmd.Flags().Changed("timeout") {
				cfg.Remote.Timeout = timeout
			}
		})
		if err != nil {
			return err
		}

		name := "remote"
		if len(args) == 1 {
			name = args[0]
		}
		p, err := helpers.ResolveParams(env.Config, name)
		if err != nil {
			return err
		}

		src := profiler.NewHTTPSource(url, env.Config.Remote.Timeout)
		defer src.Close()

		if err := probe(cmd.Context(), src, env.Config.Remote, env.Logger); err != nil {
			return err
		}

		prof, stopMetrics, err := env.NewProfiler(src)
		if err != nil {
			return err
		}
		defer stopMetrics()

		table, sampleErr := Sample(cmd.Context(), prof, p, env.Logger)
		if table != nil {
			if err := env.WriteReport(cmd.OutOrStdout(), table); err != nil {
				return err
			}
		}
		return sampleErr
	}

	return cmd
}

// probe waits for the remote endpoint to answer, retrying with backoff.
func probe(ctx context.Context, src *profiler.HTTPSource, cfg config.RemoteConfig, logger zerolog.Logger) error {
	err := retry.Do(ctx, retry.Config{
		MaxRetries:     cfg.ProbeRetries,
		InitialBackoff: cfg.ProbeBackoff,
		MaxBackoff:     5 * time.Second,
		Jitter:         0.1,
		OnRetry: func(attempt int, err error) {
			logger.Warn().Err(err).Int("attempt", attempt).Str("url", src.URL()).Msg("Remote process not reachable, retrying")
		},
	}, func() error {
		return src.Probe(ctx)
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", src.URL(), err)
	}
	return nil
}

// Sample runs the measurement iterations of p against the profiler's
// source and aggregates their tables. On failure it returns what was
// sampled so far.
func Sample(ctx context.Context, prof *profiler.Profiler, p params.BenchmarkParams, logger zerolog.Logger) (*stacks.Table, error) {
	window := p.Measurement()
	if window.Skipped() {
		return stacks.Aggregate(), nil
	}
	if !window.Timed() {
		return nil, fmt.Errorf("sampling a remote process needs a timed window, got %s: %w", window, params.ErrConfig)
	}

	var tables []*stacks.Table
	for i := 0; i < window.Count; i++ {
		if err := prof.BeforeIteration(ctx, p, window); err != nil {
			return stacks.Aggregate(tables...), err
		}
		waitErr := wait(ctx, window.Duration)
		table, err := prof.AfterIteration(p, window)
		if table != nil {
			tables = append(tables, table)
		}
		if err = errors.Join(waitErr, err); err != nil {
			return stacks.Aggregate(tables...), fmt.Errorf("iteration %d: %w", i+1, err)
		}

		logger.Info().
			Int("iteration", i+1).
			Int("of", window.Count).
			Int64("samples", table.Total()).
			Msg("Sampling iteration finished")
	}
	return stacks.Aggregate(tables...), nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
