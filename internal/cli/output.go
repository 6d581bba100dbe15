package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tsera-dev/tsera/internal/plan"
)

// printPlan renders a plan in the configured format.
func printPlan(w io.Writer, opts *RootOptions, p plan.Plan) error {
	if opts.Format == "json" {
		return printPlanJSON(w, p)
	}

	if !p.Summary.Changed && p.Summary.Noop == 0 {
		fmt.Fprintln(w, "coherent: nothing to do")
		return nil
	}
	for _, step := range p.Steps {
		fmt.Fprintf(w, "%-7s %s\n", step.Kind, step.Path())
	}
	printSummary(w, p.Summary)
	return nil
}

func printSummary(w io.Writer, s plan.Summary) {
	if s.Changed {
		fmt.Fprintf(w, "pending: %d create, %d update, %d delete", s.Create, s.Update, s.Delete)
		if s.Noop > 0 {
			fmt.Fprintf(w, ", %d unchanged", s.Noop)
		}
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w, "clean: no drift detected")
}

type planJSON struct {
	Steps   []planStepJSON `json:"steps"`
	Summary plan.Summary   `json:"summary"`
}

type planStepJSON struct {
	Kind     plan.StepKind `json:"kind"`
	NodeID   string        `json:"nodeId"`
	Path     string        `json:"path"`
	PrevHash string        `json:"prevHash,omitempty"`
}

func printPlanJSON(w io.Writer, p plan.Plan) error {
	out := planJSON{Summary: p.Summary, Steps: []planStepJSON{}}
	for _, step := range p.Steps {
		sj := planStepJSON{Kind: step.Kind, NodeID: step.Node.ID, Path: step.Path()}
		if step.Previous != nil {
			sj.PrevHash = step.Previous.Hash
		}
		out.Steps = append(out.Steps, sj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
