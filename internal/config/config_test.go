package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/stackprof/internal/constants"
	"github.com/coral-mesh/stackprof/internal/params"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), constants.ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Profiler.Lines)
	assert.Equal(t, 10, cfg.Profiler.Top)
	assert.Equal(t, 10*time.Millisecond, cfg.Profiler.Period)
	assert.Equal(t, "text", cfg.Report.Format)
}

func TestLayeredLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
profiler:
  lines: 4
  period: 5ms
  ignored_threads: []
run:
  forks: 0
  threads: max
  thread_groups: [2, 1]
benchmarks:
  contended:
    workload: lock
    mode: single-shot
    measurement:
      iterations: 3
`)

	cfg, err := NewLayeredLoader().Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Profiler.Lines)
	assert.Equal(t, 5*time.Millisecond, cfg.Profiler.Period)
	assert.Equal(t, 10, cfg.Profiler.Top, "keys absent from the file keep their defaults")
	assert.NotNil(t, cfg.Profiler.IgnoredThreads)
	assert.Empty(t, cfg.Profiler.IgnoredThreads, "an explicit empty list clears the defaults")

	require.NotNil(t, cfg.Run.Forks)
	assert.Equal(t, 0, *cfg.Run.Forks, "zero forks is a value, not absence")

	b := cfg.Benchmark("contended")
	assert.Equal(t, "lock", b.Workload)
	d, err := b.Declared()
	require.NoError(t, err)
	assert.Equal(t, params.ModeSingleShot, d.Mode)
	assert.Equal(t, 3, d.MeasurementIterations)
	assert.Equal(t, params.Unset, d.WarmupIterations)
}

func TestLayeredLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "profiler:\n  lines: 4\n")
	t.Setenv("STACKPROF_STACK_LINES", "7")
	t.Setenv("STACKPROF_FORKS", "2")
	t.Setenv("STACKPROF_THREAD_GROUPS", "3, 1")
	t.Setenv("STACKPROF_SYNC_ITERATIONS", "false")
	t.Setenv("STACKPROF_STACK_EXCLUDE_PACKAGE_NAMES", "runtime, ,net/")

	cfg, err := NewLayeredLoader().Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Profiler.Lines)
	require.NotNil(t, cfg.Run.Forks)
	assert.Equal(t, 2, *cfg.Run.Forks)
	assert.Equal(t, []int{3, 1}, cfg.Run.ThreadGroups)
	require.NotNil(t, cfg.Run.SynchronizeIterations)
	assert.False(t, *cfg.Run.SynchronizeIterations)
	assert.Equal(t, []string{"runtime", "net/"}, cfg.Profiler.ExcludePackageNames)
}

func TestLayeredLoader_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := NewLayeredLoader().Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = NewLayeredLoader().Load(missing, true)
	assert.Error(t, err)
}

func TestLayeredLoader_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "profiler:\n  linez: 4\n")
	_, err := NewLayeredLoader().Load(path, true)
	assert.Error(t, err)
}

func TestLayeredLoader_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLayeredLoader().Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLayeredLoader_DisabledLayers(t *testing.T) {
	t.Setenv("STACKPROF_STACK_LINES", "9")
	l := NewLayeredLoader()
	l.DisableLayer(LayerEnv)
	l.DisableLayer(LayerDefaults)

	cfg, err := l.Load("", false)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Profiler.Lines)
}

func TestLoadFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("STACKPROF_STACK_PERIOD", "soon")
	cfg := DefaultConfig()
	err := LoadFromEnv(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STACKPROF_STACK_PERIOD")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiler.Lines = 0
	cfg.Profiler.Top = 0
	cfg.Report.Format = "html"
	cfg.Run.Threads = "lots"
	cfg.Benchmarks = map[string]BenchmarkConfig{"b": {Mode: "sometimes"}}

	err := cfg.Validate()
	require.Error(t, err)

	var multi *MultiValidationError
	require.True(t, errors.As(err, &multi))

	fields := make([]string, 0, len(multi.Errors))
	for _, e := range multi.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"profiler.lines", "profiler.top", "report.format", "run",
		"benchmarks.b.workload", "benchmarks.b",
	}, fields)
	assert.Contains(t, err.Error(), "validation failed with 6 errors")
}

func TestParseThreads(t *testing.T) {
	n, err := ParseThreads("")
	require.NoError(t, err)
	assert.Equal(t, params.ThreadsUnset, n)

	n, err = ParseThreads("MAX")
	require.NoError(t, err)
	assert.Equal(t, params.MaxThreads, n)

	n, err = ParseThreads(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, bad := range []string{"0", "-3", "four"} {
		_, err = ParseThreads(bad)
		assert.ErrorIs(t, err, params.ErrConfig, bad)
	}
}

func TestRunConfig_Overrides(t *testing.T) {
	zero := 0
	off := false
	r := RunConfig{
		Threads:               "3",
		WarmupIterations:      &zero,
		MeasurementTime:       2 * time.Second,
		SynchronizeIterations: &off,
		SkipWarmup:            true,
	}

	o, err := r.Overrides()
	require.NoError(t, err)
	assert.Equal(t, 3, o.Threads)
	assert.Equal(t, 0, o.WarmupIterations)
	assert.Equal(t, params.Unset, o.Forks)
	assert.Equal(t, 2*time.Second, o.MeasurementTime)
	assert.Equal(t, &off, o.SynchronizeIterations)
	assert.True(t, o.SkipWarmup)

	_, err = RunConfig{ThreadGroups: []int{1, 0}}.Overrides()
	assert.ErrorIs(t, err, params.ErrConfig)
}

func TestProfilerConfig_Sampler(t *testing.T) {
	cfg := DefaultConfig().Profiler
	cfg.DetailLine = true
	s := cfg.Sampler()
	require.NoError(t, s.Validate())
	assert.True(t, s.DetailLine)
	assert.Equal(t, cfg.IgnoredThreads, s.IgnoredThreads)
}

func TestLoader_Resolve(t *testing.T) {
	dir := t.TempDir()
	home := t.TempDir()
	l := &Loader{homeDir: home, workDir: dir}

	path, required := l.Resolve("")
	assert.Empty(t, path)
	assert.False(t, required)

	global := l.GlobalConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
	require.NoError(t, os.WriteFile(global, []byte("report:\n  format: json\n"), 0o600))
	path, _ = l.Resolve("")
	assert.Equal(t, global, path)

	require.NoError(t, os.WriteFile(l.LocalConfigPath(), []byte("report:\n  format: folded\n"), 0o600))
	path, _ = l.Resolve("")
	assert.Equal(t, l.LocalConfigPath(), path, "project file wins over the user file")

	assert.Equal(t, "STACKPROF_CONFIG", ConfigEnvVar)
	t.Setenv(ConfigEnvVar, "/etc/stackprof.yaml")
	path, required = l.Resolve("")
	assert.Equal(t, "/etc/stackprof.yaml", path)
	assert.True(t, required)

	path, _ = l.Resolve("explicit.yaml")
	assert.Equal(t, "explicit.yaml", path)

	t.Setenv(ConfigEnvVar, "")
	cfg, _, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "folded", cfg.Report.Format)
}
