// Package params resolves the effective benchmark parameters (iteration
// windows, thread layout and fork counts) from hard defaults, declarative
// per-benchmark settings and caller overrides.
package params

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Unset marks an integer override or declaration that was not supplied.
// Zero is a real value for counts and forks, so it cannot play that role.
const Unset = -1

// Thread count markers. Threads are always at least 1 once resolved, which
// frees zero to mean "not supplied".
const (
	ThreadsUnset = 0
	MaxThreads   = -1
)

// Mode selects how iterations are bounded.
type Mode int

const (
	// ModeTimed runs each iteration for a fixed duration.
	ModeTimed Mode = iota
	// ModeSingleShot invokes the workload once per thread per iteration.
	ModeSingleShot
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeTimed:
		return "timed"
	case ModeSingleShot:
		return "single-shot"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as written in configuration files and flags.
// An empty string is the timed mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "timed", "time":
		return ModeTimed, nil
	case "single-shot", "singleshot", "ss":
		return ModeSingleShot, nil
	default:
		return ModeTimed, fmt.Errorf("unknown benchmark mode %q", s)
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IterationWindow describes one measurement phase. A zero Duration is the
// none-sentinel: single-shot iterations and skipped phases carry no time.
type IterationWindow struct {
	Count    int
	Duration time.Duration
}

// Timed reports whether iterations in this window are bounded by time.
func (w IterationWindow) Timed() bool {
	return w.Duration > 0
}

// Skipped reports whether the phase runs no iterations at all.
func (w IterationWindow) Skipped() bool {
	return w.Count == 0
}

func (w IterationWindow) String() string {
	switch {
	case w.Skipped():
		return "skipped"
	case w.Timed():
		return fmt.Sprintf("%d iterations, %s each", w.Count, w.Duration)
	default:
		return fmt.Sprintf("%d iterations, single-shot", w.Count)
	}
}

func (w IterationWindow) validate(phase string) error {
	if w.Count < 0 {
		return newConfigError(phase+".iterations", "must not be negative, got %d", w.Count)
	}
	if w.Duration < 0 {
		return newConfigError(phase+".time", "must not be negative, got %s", w.Duration)
	}
	return nil
}

// Values is the plain form of BenchmarkParams, used to build parameters
// directly and to serialize resolved ones.
type Values struct {
	Mode                  Mode            `json:"mode"`
	SynchronizeIterations bool            `json:"synchronize_iterations"`
	Threads               int             `json:"threads"`
	ThreadGroups          []int           `json:"thread_groups"`
	Forks                 int             `json:"forks"`
	WarmupForks           int             `json:"warmup_forks"`
	Warmup                IterationWindow `json:"warmup"`
	Measurement           IterationWindow `json:"measurement"`
}

// BenchmarkParams is the resolved, immutable parameter set of one benchmark
// run. It is safe to share between goroutines.
type BenchmarkParams struct {
	v Values
}

// New validates values and freezes them into BenchmarkParams.
func New(v Values) (BenchmarkParams, error) {
	v.ThreadGroups = slices.Clone(v.ThreadGroups)
	if len(v.ThreadGroups) == 0 {
		v.ThreadGroups = []int{1}
	}
	if err := validateGroups(v.ThreadGroups); err != nil {
		return BenchmarkParams{}, err
	}
	if v.Threads < 1 {
		return BenchmarkParams{}, newConfigError("threads", "must be at least 1, got %d", v.Threads)
	}
	if sum := sumGroups(v.ThreadGroups); v.Threads%sum != 0 {
		return BenchmarkParams{}, newConfigError("thread_groups",
			"groups %v (sum %d) do not partition %d threads", v.ThreadGroups, sum, v.Threads)
	}
	if v.Forks < 0 {
		return BenchmarkParams{}, newConfigError("forks", "must not be negative, got %d", v.Forks)
	}
	if v.WarmupForks < 0 {
		return BenchmarkParams{}, newConfigError("warmup_forks", "must not be negative, got %d", v.WarmupForks)
	}
	if err := v.Warmup.validate("warmup"); err != nil {
		return BenchmarkParams{}, err
	}
	if err := v.Measurement.validate("measurement"); err != nil {
		return BenchmarkParams{}, err
	}
	return BenchmarkParams{v: v}, nil
}

func (p BenchmarkParams) Mode() Mode { return p.v.Mode }
func (p BenchmarkParams) SynchronizeIterations() bool { return p.v.SynchronizeIterations }
func (p BenchmarkParams) Threads() int { return p.v.Threads }
func (p BenchmarkParams) Forks() int { return p.v.Forks }
func (p BenchmarkParams) WarmupForks() int { return p.v.WarmupForks }
func (p BenchmarkParams) Warmup() IterationWindow { return p.v.Warmup }
func (p BenchmarkParams) Measurement() IterationWindow { return p.v.Measurement }

// ThreadGroups returns a copy of the thread group ratios.
func (p BenchmarkParams) ThreadGroups() []int {
	return slices.Clone(p.v.ThreadGroups)
}

// GroupSizes expands the ratios into the number of threads assigned to each
// group. The sizes always sum to Threads.
func (p BenchmarkParams) GroupSizes() []int {
	sum := sumGroups(p.v.ThreadGroups)
	if sum == 0 {
		return nil
	}
	scale := p.v.Threads / sum
	sizes := make([]int, len(p.v.ThreadGroups))
	for i, g := range p.v.ThreadGroups {
		sizes[i] = g * scale
	}
	return sizes
}

// Values returns a copy of the underlying values.
func (p BenchmarkParams) Values() Values {
	v := p.v
	v.ThreadGroups = slices.Clone(v.ThreadGroups)
	return v
}

// Equal reports whether both parameter sets are identical.
func (p BenchmarkParams) Equal(o BenchmarkParams) bool {
	return p.v.Mode == o.v.Mode &&
		p.v.SynchronizeIterations == o.v.SynchronizeIterations &&
		p.v.Threads == o.v.Threads &&
		slices.Equal(p.v.ThreadGroups, o.v.ThreadGroups) &&
		p.v.Forks == o.v.Forks &&
		p.v.WarmupForks == o.v.WarmupForks &&
		p.v.Warmup == o.v.Warmup &&
		p.v.Measurement == o.v.Measurement
}

// MarshalJSON serializes the resolved values.
func (p BenchmarkParams) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.v)
}

func (p BenchmarkParams) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode:                   %s\n", p.v.Mode)
	fmt.Fprintf(&b, "Threads:                %d (groups %v)\n", p.v.Threads, p.v.ThreadGroups)
	fmt.Fprintf(&b, "Synchronize iterations: %t\n", p.v.SynchronizeIterations)
	fmt.Fprintf(&b, "Forks:                  %d (+%d warmup)\n", p.v.Forks, p.v.WarmupForks)
	fmt.Fprintf(&b, "Warmup:                 %s\n", p.v.Warmup)
	fmt.Fprintf(&b, "Measurement:            %s\n", p.v.Measurement)
	return b.String()
}

func validateGroups(groups []int) error {
	if len(groups) == 0 {
		return newConfigError("thread_groups", "must contain at least one group")
	}
	for i, g := range groups {
		if g < 1 {
			return newConfigError("thread_groups", "group %d has non-positive ratio %d", i, g)
		}
	}
	return nil
}

func sumGroups(groups []int) int {
	sum := 0
	for _, g := range groups {
		sum += g
	}
	return sum
}
