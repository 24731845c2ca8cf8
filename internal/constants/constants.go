// Package constants defines shared configuration constants.
package constants

const (
	ConfigFile = "stackprof.yaml"

	DefaultDir = ".stackprof"

	DefaultDatabasePath = DefaultDir + "/" + "results.duckdb"

	// EnvPrefix prefixes every environment variable read by the config loader.
	EnvPrefix = "STACKPROF_"
)
