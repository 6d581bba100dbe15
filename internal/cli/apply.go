package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsera-dev/tsera/internal/engine"
)

// NewApplyCommand creates the apply command: one full cycle.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run one coherence cycle",
		Long: `Run one full cycle: discover entities, build the graph, diff against
the last applied state, execute the plan, and persist the new state.

Example:
  tsera apply
  tsera apply --root ./myproject`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(rootOpts)
			if err != nil {
				return err
			}

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep.Summary)
			}
			for _, sr := range rep.Steps {
				marker := " "
				if sr.Result.Changed {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %-7s %s\n", marker, sr.Step.Kind, sr.Result.Path)
			}
			if rep.Summary.Changed {
				fmt.Fprintf(w, "applied: %d create, %d update, %d delete\n",
					rep.Summary.Create, rep.Summary.Update, rep.Summary.Delete)
			} else {
				fmt.Fprintln(w, "clean: no drift detected")
			}
			return nil
		},
	}

	return cmd
}
