// Package plan diffs a freshly built graph against the persisted
// engine state to decide what must be created, updated, or deleted.
//
// The plan is the sole trigger for filesystem mutation: the applier
// never writes anything that did not first appear as a step here.
package plan

import (
	"sort"

	"github.com/tsera-dev/tsera/internal/graph"
	"github.com/tsera-dev/tsera/internal/state"
)

// StepKind is the action a step performs.
type StepKind string

const (
	StepCreate StepKind = "create"
	StepUpdate StepKind = "update"
	StepDelete StepKind = "delete"
	StepNoop   StepKind = "noop"
)

// Step is one planned action against a single artifact.
type Step struct {
	Kind StepKind

	// Node is the artifact acted on. For delete steps the node is
	// reconstructed from the prior snapshot, since the artifact is no
	// longer produced by the current graph.
	Node *graph.Node

	// Previous is the prior snapshot for update and delete steps.
	Previous *state.SnapshotRecord
}

// Path returns the step's sort and display path: target path if set,
// else source path, else the node ID.
func (s Step) Path() string {
	switch {
	case s.Node.TargetPath != "":
		return s.Node.TargetPath
	case s.Node.SourcePath != "":
		return s.Node.SourcePath
	default:
		return s.Node.ID
	}
}

// Summary tallies a plan's steps by kind.
type Summary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	Noop   int `json:"noop"`
	Total  int `json:"total"`

	// Changed reports whether any step mutates the filesystem.
	// Noops do not count.
	Changed bool `json:"changed"`
}

// Plan is an ordered set of steps plus their summary.
type Plan struct {
	Steps   []Step
	Summary Summary
}

// Options control planning.
type Options struct {
	// IncludeUnchanged emits a noop step for every output node whose
	// hash matches its prior snapshot. Off by default: unchanged nodes
	// are simply omitted.
	IncludeUnchanged bool
}

// Diff computes the plan that reconciles prior state with the current
// graph. Only output-mode nodes participate; entity nodes exist purely
// to anchor edges.
//
// Per output node: no prior snapshot means create, a differing hash
// means update (carrying the prior snapshot), an equal hash means noop
// or omission. Prior snapshots with no corresponding current node
// become delete steps. Steps are sorted by path for deterministic,
// reviewable output.
func Diff(g *graph.Graph, prior state.EngineState, opts Options) Plan {
	var steps []Step
	seen := make(map[string]bool)

	for _, node := range g.OutputNodes() {
		seen[node.ID] = true

		prev, ok := prior[node.ID]
		switch {
		case !ok:
			steps = append(steps, Step{Kind: StepCreate, Node: node})
		case prev.Hash != node.Hash:
			prevCopy := prev
			steps = append(steps, Step{Kind: StepUpdate, Node: node, Previous: &prevCopy})
		case opts.IncludeUnchanged:
			prevCopy := prev
			steps = append(steps, Step{Kind: StepNoop, Node: node, Previous: &prevCopy})
		}
	}

	for id, prev := range prior {
		if seen[id] {
			continue
		}
		prevCopy := prev
		steps = append(steps, Step{
			Kind:     StepDelete,
			Node:     nodeFromSnapshot(prev),
			Previous: &prevCopy,
		})
	}

	sort.Slice(steps, func(i, j int) bool {
		pi, pj := steps[i].Path(), steps[j].Path()
		if pi != pj {
			return pi < pj
		}
		return steps[i].Node.ID < steps[j].Node.ID
	})

	return Plan{Steps: steps, Summary: summarize(steps)}
}

// nodeFromSnapshot rebuilds a minimal output node for an artifact that
// only survives in the prior state.
func nodeFromSnapshot(rec state.SnapshotRecord) *graph.Node {
	return &graph.Node{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Mode:       graph.ModeOutput,
		Label:      rec.Label,
		Hash:       rec.Hash,
		TargetPath: rec.TargetPath,
		SourcePath: rec.SourcePath,
	}
}

func summarize(steps []Step) Summary {
	var s Summary
	for _, step := range steps {
		switch step.Kind {
		case StepCreate:
			s.Create++
		case StepUpdate:
			s.Update++
		case StepDelete:
			s.Delete++
		case StepNoop:
			s.Noop++
		}
	}
	s.Total = len(steps)
	s.Changed = s.Create+s.Update+s.Delete > 0
	return s
}
