package results

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/helpers"
	"github.com/coral-mesh/stackprof/internal/config"
	"github.com/coral-mesh/stackprof/internal/params"
	"github.com/coral-mesh/stackprof/internal/storage"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var (
		dbPath string
		runID  string
		forks  []int
		phase  string
		input  string
		format string
		top    int
		pprof  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the samples of a stored run or a pprof file",
		Long: `Render the stack samples of a stored run, aggregated over the selected
forks, or re-render a profile previously written with --pprof.

Examples:
  # Latest stored run
  stackprof report

  # One run, forks 0 and 2 only, as folded stacks
  stackprof report --run 2f0c... --fork 0,2 -o folded

  # Convert a pprof file back into the text report
  stackprof report --input lock.pb.gz`,
		Args: cobra.NoArgs,
	}

	databaseFlag(cmd, &dbPath)
	helpers.AddFormatFlag(cmd, &format)
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: the latest run)")
	cmd.Flags().IntSliceVar(&forks, "fork", nil, "Only include these forks")
	cmd.Flags().StringVar(&phase, "phase", storage.PhaseMeasurement, "Stored phase to report")
	cmd.Flags().StringVar(&input, "input", "", "Read the samples from a pprof file instead of the database")
	cmd.Flags().IntVar(&top, "top", 0, "Stacks shown per thread state")
	cmd.Flags().StringVar(&pprof, "pprof", "", "Also write the profile to this file in pprof format")
	cmd.MarkFlagsMutuallyExclusive("input", "run")
	cmd.MarkFlagsMutuallyExclusive("input", "db")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		env, err := helpers.LoadEnv(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("format") {
				cfg.Report.Format = format
			}
			if cmd.Flags().Changed("top") {
				cfg.Profiler.Top = top
			}
			if cmd.Flags().Changed("pprof") {
				cfg.Report.Pprof = pprof
			}
		})
		if err != nil {
			return err
		}

		if input != "" {
			table, err := helpers.ReadPprofFile(input)
			if err != nil {
				return err
			}
			return env.WriteReport(cmd.OutOrStdout(), table)
		}

		if dbPath == "" {
			dbPath = env.Config.Storage.Path
		}
		s, closeDB, err := openStorage(dbPath, true, env.Logger)
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := cmd.Context()
		run, err := selectRun(cmd, s, runID)
		if err != nil {
			return err
		}

		table, err := s.LoadTable(ctx, storage.Filter{RunID: run.ID, Phase: phase, Forks: forks})
		if err != nil {
			return err
		}

		env.Logger.Info().
			Str("run_id", run.ID).
			Str("benchmark", run.Benchmark).
			Str("params", describeParams(run.Params)).
			Int64("samples", table.Total()).
			Msg("Loaded stored run")
		return env.WriteReport(cmd.OutOrStdout(), table)
	}

	return cmd
}

func selectRun(cmd *cobra.Command, s *storage.Storage, runID string) (*storage.Run, error) {
	if runID == "" {
		return s.LatestRun(cmd.Context())
	}
	return s.GetRun(cmd.Context(), runID)
}

// describeParams renders stored parameters on one line.
func describeParams(raw string) string {
	var v params.Values
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return fmt.Sprintf("%s, %d threads %v, %d forks, measurement %s",
		v.Mode, v.Threads, v.ThreadGroups, v.Forks, v.Measurement)
}

