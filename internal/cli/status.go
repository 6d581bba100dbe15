package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tsera-dev/tsera/internal/engine"
	"github.com/tsera-dev/tsera/internal/plan"
)

// NewStatusCommand creates the status command: persisted snapshots plus
// the current drift.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show tracked artifacts and pending drift",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(rootOpts)
			if err != nil {
				return err
			}
			cfg.Journal = false

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.State()
			if err != nil {
				return err
			}
			p, err := e.Plan(cmd.Context(), plan.Options{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"tracked": len(st),
					"summary": p.Summary,
				})
			}

			ids := make([]string, 0, len(st))
			for id := range st {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				rec := st[id]
				fmt.Fprintf(w, "%-14s %s\n", rec.Kind, rec.TargetPath)
			}
			fmt.Fprintf(w, "%d artifact(s) tracked\n", len(st))
			printSummary(w, p.Summary)
			return nil
		},
	}

	return cmd
}
