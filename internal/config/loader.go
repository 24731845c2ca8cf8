// Package config loads the stackprof configuration: built-in defaults, an
// optional stackprof.yaml and STACKPROF_* environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/coral-mesh/stackprof/internal/constants"
)

// ConfigEnvVar names an explicit configuration file.
const ConfigEnvVar = constants.EnvPrefix + "CONFIG"

// Loader locates and loads configuration files.
type Loader struct {
	homeDir string
	workDir string
}

// NewLoader creates a new config loader. Files are searched in the working
// directory first, then in ~/.stackprof.
func NewLoader() *Loader {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Loader{homeDir: home, workDir: wd}
}

// GlobalConfigPath returns the path of the per-user config file.
func (l *Loader) GlobalConfigPath() string {
	return filepath.Join(l.homeDir, constants.DefaultDir, constants.ConfigFile)
}

// LocalConfigPath returns the path of the project config file.
func (l *Loader) LocalConfigPath() string {
	return filepath.Join(l.workDir, constants.ConfigFile)
}

// Resolve returns the file to load and whether it must exist. An explicit
// path (flag, then STACKPROF_CONFIG) is required; otherwise the first
// existing candidate is used.
func (l *Loader) Resolve(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return env, true
	}
	for _, candidate := range []string{l.LocalConfigPath(), l.GlobalConfigPath()} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, false
		}
	}
	return "", false
}

// Load resolves, loads and validates the configuration.
func (l *Loader) Load(explicit string) (*Config, string, error) {
	path, required := l.Resolve(explicit)
	cfg, err := NewLayeredLoader().Load(path, required)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Benchmark returns the declaration for name, or an empty one when the
// configuration does not mention it.
func (c *Config) Benchmark(name string) BenchmarkConfig {
	if b, ok := c.Benchmarks[name]; ok {
		return b
	}
	return BenchmarkConfig{Workload: name}
}
