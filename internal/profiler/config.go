package profiler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/coral-mesh/stackprof/internal/constants"
)

// Config holds configuration for the stack profiler.
type Config struct {
	StackLines          int           // Frames kept per sample, top first (default: 1)
	TopStacks           int           // Stacks shown per state in reports (default: 10)
	Period              time.Duration // Sampling period (default: 10ms)
	DetailLine          bool          // Record source line numbers
	ExcludePackages     bool          // Strip leading frames from excluded packages
	ExcludePackageNames []string      // Package prefixes considered by ExcludePackages
	IgnoredThreads      []string      // Thread names never sampled (case-insensitive)
}

// DefaultConfig returns the default profiler configuration.
func DefaultConfig() Config {
	return Config{
		StackLines:          constants.DefaultStackLines,
		TopStacks:           constants.DefaultTopStacks,
		Period:              constants.DefaultSamplePeriod,
		ExcludePackageNames: slices.Clone(constants.DefaultExcludedPackages),
		IgnoredThreads:      slices.Clone(constants.DefaultIgnoredThreads),
	}
}

// withDefaults fills zero-valued fields. Nil lists take the defaults, an
// empty non-nil list stays empty.
func (c Config) withDefaults() Config {
	if c.StackLines == 0 {
		c.StackLines = constants.DefaultStackLines
	}
	if c.TopStacks == 0 {
		c.TopStacks = constants.DefaultTopStacks
	}
	if c.Period == 0 {
		c.Period = constants.DefaultSamplePeriod
	}
	if c.ExcludePackageNames == nil {
		c.ExcludePackageNames = slices.Clone(constants.DefaultExcludedPackages)
	}
	if c.IgnoredThreads == nil {
		c.IgnoredThreads = slices.Clone(constants.DefaultIgnoredThreads)
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.StackLines < 1 || c.StackLines > constants.MaxStackLines {
		return fmt.Errorf("stack lines must be between 1 and %d, got %d", constants.MaxStackLines, c.StackLines)
	}
	if c.TopStacks < 1 {
		return fmt.Errorf("top stacks must be positive, got %d", c.TopStacks)
	}
	if c.Period < 0 {
		return fmt.Errorf("sampling period must be positive, got %s", c.Period)
	}
	return nil
}

// ParsePackageList splits a comma-separated list, dropping blanks. The
// result is never nil, so a blank list clears the defaults.
func ParsePackageList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
