// Package profiler implements a sampling stack profiler. While an iteration
// runs, a single background goroutine periodically enumerates the threads of
// the monitored process and counts their (state, stack) pairs into a
// stacks.Table that is handed to the caller when the iteration ends.
package profiler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Label is the short name of this profiler in reports and flags.
const Label = "stack"

// Description identifies a profiler in listings.
type Description struct {
	Label string
	Text  string
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithMetrics records sampler activity into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Profiler) {
		p.metrics = m
	}
}

// Profiler samples thread stacks between BeforeIteration and
// AfterIteration. At most one sampling cycle is active at a time.
type Profiler struct {
	config  Config
	source  ThreadSource
	logger  zerolog.Logger
	metrics *Metrics

	mu   sync.Mutex
	task *samplingTask
}

// New creates a profiler reading threads from source.
func New(config Config, source ThreadSource, logger zerolog.Logger, opts ...Option) (*Profiler, error) {
	if source == nil {
		return nil, errors.New("thread source is required")
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Profiler{
		config: config,
		source: source,
		logger: logger.With().Str("component", "stack_profiler").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Profiler) Config() Config {
	return p.config
}

// Label returns the profiler's short name.
func (p *Profiler) Label() string {
	return Label
}

// Describe returns the profiler's label and a one-line description.
func (p *Profiler) Describe() Description {
	return Description{
		Label: Label,
		Text:  "Simple and naive Go goroutine stack profiler",
	}
}

// Start begins a sampling cycle and returns immediately. Cancelling ctx ends
// sampling early; Stop must still be called to collect the results.
func (p *Profiler) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task != nil {
		return ErrAlreadySampling
	}

	p.task = newSamplingTask(p.config, p.source, p.logger, p.metrics)
	p.task.start(ctx)

	p.logger.Debug().
		Dur("period", p.config.Period).
		Int("stack_lines", p.config.StackLines).
		Msg("Stack sampling started")
	return nil
}

// Stop ends the active cycle, waits for the sampling goroutine to exit and
// returns the sealed table. If sampling failed, the table holds the samples
// taken before the failure and the error is a *FatalError.
func (p *Profiler) Stop() (*stacks.Table, error) {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.mu.Unlock()

	if task == nil {
		return nil, ErrNotSampling
	}

	table, err := task.stop()

	event := p.logger.Debug()
	if err != nil {
		event = p.logger.Error().Err(err)
	}
	event.
		Int64("ticks", task.ticks).
		Int64("samples", table.Total()).
		Int64("races", task.races).
		Msg("Stack sampling stopped")

	return table, err
}

// Sampling reports whether a cycle is active.
func (p *Profiler) Sampling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}

// BeforeIteration starts sampling for one iteration.
func (p *Profiler) BeforeIteration(ctx context.Context, _ params.BenchmarkParams, _ params.IterationWindow) error {
	return p.Start(ctx)
}

// AfterIteration stops sampling and returns the iteration's table.
func (p *Profiler) AfterIteration(_ params.BenchmarkParams, _ params.IterationWindow) (*stacks.Table, error) {
	return p.Stop()
}
