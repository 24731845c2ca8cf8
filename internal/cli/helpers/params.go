package helpers

import (
	"fmt"

	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/params"
)

// ResolveParams resolves the parameters of benchmark name from its
// declaration in cfg and the run overrides.
func ResolveParams(cfg *config.Config, name string) (params.BenchmarkParams, error) {
	declared, err := cfg.Benchmark(name).Declared()
	if err != nil {
		return params.BenchmarkParams{}, fmt.Errorf("benchmark %s: %w", name, err)
	}
	overrides, err := cfg.Run.Overrides()
	if err != nil {
		return params.BenchmarkParams{}, err
	}
	return params.Resolve(params.StandardDefaults(), declared, overrides)
}
