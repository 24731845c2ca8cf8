package config

import (
	"time"
)

// Config is the stackprof configuration file (stackprof.yaml).
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Report   ReportConfig   `yaml:"report"`
	Run      RunConfig      `yaml:"run"`
	Storage  StorageConfig  `yaml:"storage"`
	Remote   RemoteConfig   `yaml:"remote"`

	// Benchmarks holds per-benchmark declarations, keyed by benchmark name.
	Benchmarks map[string]BenchmarkConfig `yaml:"benchmarks,omitempty"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"STACKPROF_LOG_LEVEL"`
	Format string `yaml:"format" env:"STACKPROF_LOG_FORMAT"` // auto, pretty or json
}

// ProfilerConfig configures the stack sampler.
type ProfilerConfig struct {
	Lines               int           `yaml:"lines" env:"STACKPROF_STACK_LINES"`
	Top                 int           `yaml:"top" env:"STACKPROF_STACK_TOP"`
	Period              time.Duration `yaml:"period" env:"STACKPROF_STACK_PERIOD"`
	DetailLine          bool          `yaml:"detail_line" env:"STACKPROF_STACK_DETAIL_LINE"`
	ExcludePackages     bool          `yaml:"exclude_packages" env:"STACKPROF_STACK_EXCLUDE_PACKAGES"`
	ExcludePackageNames []string      `yaml:"exclude_package_names" env:"STACKPROF_STACK_EXCLUDE_PACKAGE_NAMES"`
	IgnoredThreads      []string      `yaml:"ignored_threads" env:"STACKPROF_STACK_IGNORED_THREADS"`
	MetricsAddr         string        `yaml:"metrics_addr" env:"STACKPROF_METRICS_ADDR"` // serve /metrics while sampling
}

// ReportConfig selects how results are rendered.
type ReportConfig struct {
	Format string `yaml:"format" env:"STACKPROF_REPORT_FORMAT"`
	Pprof  string `yaml:"pprof" env:"STACKPROF_REPORT_PPROF"` // optional pprof output file
}

// RunConfig holds global overrides applied on top of every benchmark's
// declaration. Absent values leave the declaration or default in place.
type RunConfig struct {
	Threads               string        `yaml:"threads" env:"STACKPROF_THREADS"` // integer or "max"
	ThreadGroups          []int         `yaml:"thread_groups" env:"STACKPROF_THREAD_GROUPS"`
	SynchronizeIterations *bool         `yaml:"synchronize_iterations" env:"STACKPROF_SYNC_ITERATIONS"`
	Forks                 *int          `yaml:"forks" env:"STACKPROF_FORKS"`
	WarmupForks           *int          `yaml:"warmup_forks" env:"STACKPROF_WARMUP_FORKS"`
	WarmupIterations      *int          `yaml:"warmup_iterations" env:"STACKPROF_WARMUP_ITERATIONS"`
	WarmupTime            time.Duration `yaml:"warmup_time" env:"STACKPROF_WARMUP_TIME"`
	MeasurementIterations *int          `yaml:"measurement_iterations" env:"STACKPROF_MEASUREMENT_ITERATIONS"`
	MeasurementTime       time.Duration `yaml:"measurement_time" env:"STACKPROF_MEASUREMENT_TIME"`
	SkipWarmup            bool          `yaml:"skip_warmup" env:"STACKPROF_SKIP_WARMUP"`
	SkipMeasurement       bool          `yaml:"skip_measurement" env:"STACKPROF_SKIP_MEASUREMENT"`
}

// BenchmarkConfig is the declarative metadata of one benchmark.
type BenchmarkConfig struct {
	Workload     string      `yaml:"workload"`
	Mode         string      `yaml:"mode"`    // timed or single-shot
	Threads      string      `yaml:"threads"` // integer or "max"
	ThreadGroups []int       `yaml:"thread_groups,omitempty"`
	Forks        *int        `yaml:"forks,omitempty"`
	WarmupForks  *int        `yaml:"warmup_forks,omitempty"`
	Warmup       PhaseConfig `yaml:"warmup"`
	Measurement  PhaseConfig `yaml:"measurement"`
}

// PhaseConfig declares one iteration phase.
type PhaseConfig struct {
	Iterations *int          `yaml:"iterations,omitempty"`
	Time       time.Duration `yaml:"time,omitempty"`
}

// StorageConfig configures result persistence.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled" env:"STACKPROF_STORE"`
	Path    string `yaml:"path" env:"STACKPROF_DB"`
}

// RemoteConfig configures sampling of remote processes over HTTP.
type RemoteConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"STACKPROF_REMOTE_TIMEOUT"`
	ProbeRetries int           `yaml:"probe_retries" env:"STACKPROF_PROBE_RETRIES"`
	ProbeBackoff time.Duration `yaml:"probe_backoff" env:"STACKPROF_PROBE_BACKOFF"`
}
