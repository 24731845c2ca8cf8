package results

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/helpers"
	"github.com/coral-mesh/stackprof/internal/storage"
)

// runView is one row of the runs listing.
type runView struct {
	ID        string    `json:"run_id" header:"RUN ID"`
	Benchmark string    `json:"benchmark" header:"BENCHMARK"`
	Workload  string    `json:"workload" header:"WORKLOAD"`
	Samples   int64     `json:"total_samples" header:"SAMPLES"`
	StartedAt time.Time `json:"started_at" header:"STARTED"`
	Host      string    `json:"host" header:"HOST"`
	Params    string    `json:"params"`
}

func newRunView(r *storage.Run) runView {
	return runView{
		ID:        r.ID,
		Benchmark: r.Benchmark,
		Workload:  r.Workload,
		Samples:   r.TotalSamples,
		StartedAt: r.StartedAt,
		Host:      r.Host,
		Params:    r.Params,
	}
}

// NewRunsCmd creates the runs command and its subcommands.
func NewRunsCmd() *cobra.Command {
	var (
		dbPath    string
		benchmark string
		since     time.Duration
		limit     int
		format    string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs stored in the results database, newest first.

Examples:
  stackprof runs
  stackprof runs --benchmark lock -o json
  stackprof runs --since 24h --limit 5
  stackprof runs rm 2f0c...`,
		Args: cobra.NoArgs,
	}

	databaseFlag(cmd, &dbPath)
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "Only list runs of this benchmark")
	cmd.Flags().DurationVar(&since, "since", 0, "Only list runs started within this duration (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "List at most this many runs (0 for all)")
	helpers.AddListFormatFlag(cmd, &format, helpers.FormatTable, helpers.ListFormats)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := helpers.ValidateFormat(format, helpers.ListFormats); err != nil {
			return err
		}
		if since < 0 || limit < 0 {
			return fmt.Errorf("--since and --limit must not be negative")
		}
		query := storage.RunQuery{Benchmark: benchmark, Limit: limit}
		if since > 0 {
			query.Since = time.Now().Add(-since)
		}

		env, err := helpers.LoadEnv(cmd)
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = env.Config.Storage.Path
		}

		s, closeDB, err := openStorage(dbPath, true, env.Logger)
		if err != nil {
			return err
		}
		defer closeDB()

		runs, err := s.ListRuns(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(runs) == 0 && format == string(helpers.FormatTable) {
			cmd.Println("No runs stored")
			return nil
		}

		views := make([]runView, len(runs))
		for i, r := range runs {
			views[i] = newRunView(r)
		}

		formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
		if err != nil {
			return err
		}
		return formatter.Format(views, cmd.OutOrStdout())
	}

	cmd.AddCommand(newRemoveCmd())
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "rm <run-id>...",
		Short: "Delete stored runs and their samples",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := helpers.LoadEnv(cmd)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = env.Config.Storage.Path
			}

			s, closeDB, err := openStorage(dbPath, false, env.Logger)
			if err != nil {
				return err
			}
			defer closeDB()

			for _, id := range args {
				if err := s.DeleteRun(cmd.Context(), id); err != nil {
					return err
				}
				cmd.Printf("Deleted run %s\n", id)
			}
			return nil
		},
	}

	databaseFlag(cmd, &dbPath)
	return cmd
}
