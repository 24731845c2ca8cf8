package config

import (
	"slices"

	"github.com/coral-mesh/stackprof/internal/constants"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Profiler: ProfilerConfig{
			Lines:               constants.DefaultStackLines,
			Top:                 constants.DefaultTopStacks,
			Period:              constants.DefaultSamplePeriod,
			ExcludePackageNames: slices.Clone(constants.DefaultExcludedPackages),
			IgnoredThreads:      slices.Clone(constants.DefaultIgnoredThreads),
		},
		Report: ReportConfig{
			Format: "text",
		},
		Storage: StorageConfig{
			Path: constants.DefaultDatabasePath,
		},
		Remote: RemoteConfig{
			Timeout:      constants.DefaultRemoteTimeout,
			ProbeRetries: constants.DefaultProbeRetries,
			ProbeBackoff: constants.DefaultProbeBackoff,
		},
	}
}
