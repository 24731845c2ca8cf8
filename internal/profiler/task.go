package profiler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// samplingTask is one Start/Stop cycle. Its table, counters and err are
// written only by the sampling goroutine and read by stop after done is
// closed.
type samplingTask struct {
	config   Config
	source   ThreadSource
	logger   zerolog.Logger
	metrics  *Metrics
	ignored  map[string]struct{}
	excluded []string

	table  *stacks.Table
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	ticks  int64
	races  int64
}

func newSamplingTask(config Config, source ThreadSource, logger zerolog.Logger, metrics *Metrics) *samplingTask {
	ignored := make(map[string]struct{}, len(config.IgnoredThreads))
	for _, name := range config.IgnoredThreads {
		ignored[strings.ToLower(name)] = struct{}{}
	}

	var excluded []string
	if config.ExcludePackages {
		excluded = config.ExcludePackageNames
	}

	return &samplingTask{
		config:   config,
		source:   source,
		logger:   logger,
		metrics:  metrics,
		ignored:  ignored,
		excluded: excluded,
		table:    stacks.NewTable(),
		done:     make(chan struct{}),
	}
}

func (t *samplingTask) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	go t.run(ctx)
}

func (t *samplingTask) stop() (*stacks.Table, error) {
	t.cancel()
	<-t.done
	return t.table.Seal(), t.err
}

func (t *samplingTask) run(ctx context.Context) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("panic: %v", r), debug.Stack())
		}
	}()

	timer := time.NewTimer(t.config.Period)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := t.tick(ctx); err != nil {
			// A source interrupted by our own cancellation is a normal exit.
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return
			}
			t.fail(err, nil)
			return
		}

		timer.Reset(t.config.Period)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (t *samplingTask) fail(err error, stack []byte) {
	t.err = &FatalError{Err: err, Stack: stack}
	t.metrics.observeFailure()
}

// tick takes one sample of every thread that is not ignored.
func (t *samplingTask) tick(ctx context.Context) error {
	began := time.Now()

	threads, err := t.source.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}

	for _, thread := range threads {
		name := thread.Name()
		if t.isIgnored(name) {
			continue
		}

		info, err := thread.Inspect()
		if err != nil {
			if errors.Is(err, ErrThreadExited) {
				t.races++
				t.metrics.observeRace()
				continue
			}
			return fmt.Errorf("failed to inspect thread %q: %w", name, err)
		}

		t.table.Add(info.State, t.record(info.Frames), 1)
		t.metrics.observeSample(info.State)
	}

	t.ticks++
	t.metrics.observeTick(time.Since(began).Seconds())
	return nil
}

func (t *samplingTask) isIgnored(name string) bool {
	_, ok := t.ignored[strings.ToLower(name)]
	return ok
}

// record builds the sample key: leading excluded frames are dropped, the
// rest is truncated to the configured depth.
func (t *samplingTask) record(frames []stacks.Frame) stacks.Record {
	start := 0
	for start < len(frames) && t.isExcluded(frames[start].Origin) {
		start++
	}
	frames = frames[start:]

	lines := make([]string, 0, min(len(frames), t.config.StackLines))
	for _, f := range frames {
		if len(lines) >= t.config.StackLines {
			break
		}
		lines = append(lines, f.Symbol(t.config.DetailLine))
	}

	if len(lines) == 0 {
		return stacks.NewRecord(stacks.EmptyStackLine)
	}
	return stacks.NewRecord(lines...)
}

// isExcluded matches prefixes against "origin." so that "time." drops
// frames of package time but keeps those of package timeutil.
func (t *samplingTask) isExcluded(origin string) bool {
	if origin == "" {
		return false
	}
	qualified := origin + "."
	for _, prefix := range t.excluded {
		if strings.HasPrefix(qualified, prefix) {
			return true
		}
	}
	return false
}
