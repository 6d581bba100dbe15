package cli

import (
	"github.com/spf13/cobra"

	"github.com/tsera-dev/tsera/internal/engine"
	"github.com/tsera-dev/tsera/internal/plan"
)

// NewPlanCommand creates the plan command: a dry diff with no writes.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var includeUnchanged bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a cycle would change, without writing",
		Long: `Build the entity graph, diff it against the last applied state, and
print the resulting steps. Nothing is written.

Example:
  tsera plan
  tsera plan --include-unchanged --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(rootOpts)
			if err != nil {
				return err
			}
			cfg.Journal = false // planning leaves no trace

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.Plan(cmd.Context(), plan.Options{IncludeUnchanged: includeUnchanged})
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), rootOpts, p)
		},
	}

	cmd.Flags().BoolVar(&includeUnchanged, "include-unchanged", false, "also list unchanged artifacts as noop steps")

	return cmd
}
