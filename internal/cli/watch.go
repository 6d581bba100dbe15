package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsera-dev/tsera/internal/engine"
)

// NewWatchCommand creates the watch command: continuous cycles driven
// by filesystem changes.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run cycles continuously as entities change",
		Long: `Run one cycle immediately, then keep watching the entities directory.
Each debounced batch of changes triggers a fresh cycle; bursts during a
running cycle collapse into a single follow-up. Stop with Ctrl-C.

Example:
  tsera watch
  tsera watch --verbose`,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			err = e.Watch(ctx, func(rep engine.CycleReport, cycleErr error) {
				if cycleErr != nil {
					fmt.Fprintf(w, "cycle failed: %v\n", cycleErr)
					return
				}
				printSummary(w, rep.Summary)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	return cmd
}
