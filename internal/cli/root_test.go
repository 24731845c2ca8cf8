package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/testutil"
)

const testConfig = `
logging:
  level: error
  format: json
profiler:
  period: 5ms
storage:
  path: %DB%
benchmarks:
  sleepy:
    workload: sleep
    threads: "2"
    forks: 1
    warmup:
      iterations: 1
      time: 10ms
    measurement:
      iterations: 2
      time: 40ms
`

// setupConfig writes a configuration with its results database in a
// temporary directory and returns its path.
func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(config.ConfigEnvVar, "")

	path := filepath.Join(dir, "stackprof.yaml")
	content := strings.ReplaceAll(testConfig, "%DB%", filepath.Join(dir, "results.duckdb"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.NewTestContext(t))
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stackprof version dev")
	assert.Contains(t, out, "Go version: go")
}

func TestParamsCmd(t *testing.T) {
	cfgPath := setupConfig(t)

	out, err := execute(t, "params", "sleepy", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "timed", v["mode"])
	assert.EqualValues(t, 2, v["threads"])
	assert.EqualValues(t, 1, v["forks"])

	out, err = execute(t, "params", "sleepy", "--config", cfgPath, "--forks", "4", "--skip-warmup")
	require.NoError(t, err)
	assert.Contains(t, out, "Forks:                  4")
	assert.Contains(t, out, "Warmup:                 skipped")
}

func TestParamsCmd_InvalidConfig(t *testing.T) {
	cfgPath := setupConfig(t)
	_, err := execute(t, "params", "sleepy", "--config", cfgPath, "--thread-groups", "2,0")
	assert.Error(t, err)

	_, err = execute(t, "params", "sleepy", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestRunStoreAndReport(t *testing.T) {
	cfgPath := setupConfig(t)

	out, err := execute(t, "run", "sleepy", "--config", cfgPath, "--store", "-o", "folded")
	require.NoError(t, err)
	assert.Contains(t, out, "TIMED_WAITING")

	out, err = execute(t, "runs", "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "sleepy", runs[0]["benchmark"])
	assert.Equal(t, "sleep", runs[0]["workload"])
	runID, _ := runs[0]["run_id"].(string)
	require.NotEmpty(t, runID)

	out, err = execute(t, "runs", "--config", cfgPath, "--since", "1h", "--limit", "1", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0]["run_id"])

	_, err = execute(t, "runs", "--config", cfgPath, "--limit", "-1")
	assert.Error(t, err)

	out, err = execute(t, "report", "--config", cfgPath, "-o", "folded")
	require.NoError(t, err)
	assert.Contains(t, out, "TIMED_WAITING", "latest run is reported by default")

	pprofPath := filepath.Join(t.TempDir(), "sleepy.pb.gz")
	_, err = execute(t, "report", "--config", cfgPath, "--run", runID, "--fork", "0", "--pprof", pprofPath, "-o", "silent")
	require.NoError(t, err)

	out, err = execute(t, "report", "--config", cfgPath, "--input", pprofPath, "-o", "folded")
	require.NoError(t, err)
	assert.Contains(t, out, "TIMED_WAITING")

	out, err = execute(t, "runs", "rm", runID, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run "+runID)

	out, err = execute(t, "runs", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs stored")

	_, err = execute(t, "report", "--config", cfgPath)
	assert.Error(t, err)
}

func TestRunCmd_UnknownWorkload(t *testing.T) {
	cfgPath := setupConfig(t)
	_, err := execute(t, "run", "no-such-workload", "--config", cfgPath)
	assert.Error(t, err)
}

func TestReportCmd_NoDatabase(t *testing.T) {
	cfgPath := setupConfig(t)
	_, err := execute(t, "report", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results database")
}
