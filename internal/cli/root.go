package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/resolve"
	"github.com/coral-mesh/stackprof/internal/cli/results"
	"github.com/coral-mesh/stackprof/internal/cli/run"
	"github.com/coral-mesh/stackprof/internal/cli/sample"
	"github.com/coral-mesh/stackprof/internal/constants"
	"github.com/coral-mesh/stackprof/pkg/version"
)

// NewRootCmd builds the stackprof command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackprof",
		Short: "stackprof - goroutine stack sampling for Go benchmarks",
		Long: `Sample goroutine stacks while a benchmark runs and report where its
threads spend their time, grouped by thread state.

Benchmarks run in-process with warmup and measurement iterations spread
over forks and thread groups; every measurement iteration is sampled and
the samples are aggregated into one report. Remote Go processes can be
sampled through their net/http/pprof endpoint.

Configuration is read from --config, $` + constants.EnvPrefix + `CONFIG, ./` + constants.ConfigFile + `
or ~/` + constants.DefaultDir + `/` + constants.ConfigFile + `, then ` + constants.EnvPrefix + `* variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (auto, pretty, json)")

	rootCmd.AddCommand(run.NewRunCmd())
	rootCmd.AddCommand(sample.NewSampleCmd())
	rootCmd.AddCommand(resolve.NewParamsCmd())
	rootCmd.AddCommand(results.NewReportCmd())
	rootCmd.AddCommand(results.NewRunsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("stackprof version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command. An interrupt cancels the command context,
// which stops a running benchmark and reports what was sampled so far.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
