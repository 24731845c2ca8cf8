// Package resolve implements the params command.
package resolve

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/cli/helpers"
	"github.com/coral-mesh/stackprof/internal/config"
)

// NewParamsCmd creates the params command.
func NewParamsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "params <benchmark>",
		Short: "Show the resolved parameters of a benchmark",
		Long: `Resolve and print the parameters a run of <benchmark> would use:
iteration windows, threads, thread groups and forks.

Each value comes from the first layer that sets it: flags, then the
benchmark's declaration in stackprof.yaml, then the built-in defaults.

Examples:
  stackprof params contended
  stackprof params contended --threads max --thread-groups 3,1 --json`,
		Args: cobra.ExactArgs(1),
	}

	rf := helpers.AddRunFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		env, err := helpers.LoadEnv(cmd, func(cfg *config.Config) { rf.Apply(cmd.Flags(), cfg) })
		if err != nil {
			return err
		}

		p, err := helpers.ResolveParams(env.Config, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		_, err = fmt.Fprint(out, p.String())
		return err
	}

	return cmd
}
