// Package apply executes a plan against the target filesystem and folds
// the executed steps into a new engine state.
//
// Execution is strictly sequential in plan order so observer
// notifications and the state fold stay consistent. There is no
// rollback: a failed step aborts the remaining batch, and the next
// cycle's fresh diff reconciles whatever was left half-done.
package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsera-dev/tsera/internal/plan"
	"github.com/tsera-dev/tsera/internal/state"
)

// Result describes the outcome of one executed step.
type Result struct {
	Kind plan.StepKind

	// Path is the filesystem path acted on, relative to the target root.
	// Empty for noops without a target path.
	Path string

	// Changed reports whether the step mutated the filesystem. A create
	// or update whose target already held identical bytes, a delete of
	// an already-absent file, and every noop report false.
	Changed bool
}

// Observer is notified once per executed step, in plan order.
type Observer func(step plan.Step, res Result)

// Apply executes p's steps under root and returns the new engine state
// obtained by folding each executed step over prior. The input state is
// never mutated.
//
// On a step failure the remaining steps are abandoned and the state
// folded so far is returned alongside the error; callers should persist
// it so already-executed steps are remembered.
func Apply(ctx context.Context, p plan.Plan, prior state.EngineState, root string, observer Observer) (state.EngineState, error) {
	next := prior.Clone()

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return next, err
		}

		res, err := execute(step, root)
		if err != nil {
			return next, err
		}

		// Fold immediately after the step's own I/O, so a later failure
		// cannot lose the record of what this step already did.
		switch step.Kind {
		case plan.StepCreate, plan.StepUpdate:
			next[step.Node.ID] = state.RecordFromNode(step.Node)
		case plan.StepDelete:
			delete(next, step.Node.ID)
		}

		if observer != nil {
			observer(step, res)
		}
	}

	return next, nil
}

func execute(step plan.Step, root string) (Result, error) {
	switch step.Kind {
	case plan.StepCreate, plan.StepUpdate:
		return executeWrite(step, root)
	case plan.StepDelete:
		return executeDelete(step, root)
	case plan.StepNoop:
		return Result{Kind: plan.StepNoop, Path: step.Node.TargetPath, Changed: false}, nil
	default:
		return Result{}, &StepError{
			Code:    ErrCodeUnknownStepKind,
			Step:    step.Kind,
			NodeID:  step.Node.ID,
			Message: fmt.Sprintf("unknown step kind %q", step.Kind),
		}
	}
}

func executeWrite(step plan.Step, root string) (Result, error) {
	if step.Node.TargetPath == "" {
		return Result{}, &StepError{
			Code:    ErrCodeMissingTarget,
			Step:    step.Kind,
			NodeID:  step.Node.ID,
			Message: "create/update step has no target path",
		}
	}
	if step.Node.Content == nil {
		return Result{}, &StepError{
			Code:    ErrCodeMissingContent,
			Step:    step.Kind,
			NodeID:  step.Node.ID,
			Message: "create/update step has no content",
		}
	}

	abs := filepath.Join(root, step.Node.TargetPath)

	existing, err := os.ReadFile(abs)
	if err == nil && bytes.Equal(existing, step.Node.Content) {
		return Result{Kind: step.Kind, Path: step.Node.TargetPath, Changed: false}, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return Result{}, fmt.Errorf("read %s: %w", abs, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, fmt.Errorf("create parent dirs for %s: %w", abs, err)
	}
	if err := os.WriteFile(abs, step.Node.Content, 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", abs, err)
	}

	return Result{Kind: step.Kind, Path: step.Node.TargetPath, Changed: true}, nil
}

func executeDelete(step plan.Step, root string) (Result, error) {
	path := step.Node.TargetPath
	if path == "" && step.Previous != nil {
		path = step.Previous.TargetPath
	}
	if path == "" {
		return Result{}, &StepError{
			Code:    ErrCodeMissingTarget,
			Step:    plan.StepDelete,
			NodeID:  step.Node.ID,
			Message: "delete step has no path reference",
		}
	}

	abs := filepath.Join(root, path)
	err := os.Remove(abs)
	if os.IsNotExist(err) {
		// Already gone; deletion is idempotent.
		return Result{Kind: plan.StepDelete, Path: path, Changed: false}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("remove %s: %w", abs, err)
	}

	return Result{Kind: plan.StepDelete, Path: path, Changed: true}, nil
}
