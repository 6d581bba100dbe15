package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsera-dev/tsera/internal/engine"
)

// NewHistoryCommand creates the history command: recent cycles from the
// journal.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent coherence cycles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(rootOpts)
			if err != nil {
				return err
			}
			cfg.Journal = true

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			recs, err := e.Journal().List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			if len(recs) == 0 {
				fmt.Fprintln(w, "no cycles recorded yet")
				return nil
			}
			for _, rec := range recs {
				status := "ok"
				if rec.Err != "" {
					status = "failed: " + rec.Err
				}
				fmt.Fprintf(w, "%s  %s  +%d ~%d -%d  %s\n",
					rec.Started.Local().Format(time.RFC3339),
					rec.ID[:8],
					rec.Summary.Create, rec.Summary.Update, rec.Summary.Delete,
					status,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum cycles to show (0 = all)")

	return cmd
}
