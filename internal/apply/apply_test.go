package apply

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsera-dev/tsera/internal/graph"
	"github.com/tsera-dev/tsera/internal/plan"
	"github.com/tsera-dev/tsera/internal/state"
)

func buildUser(t *testing.T, migrationContent string) *graph.Graph {
	t.Helper()
	g, err := graph.Build([]graph.EntityInput{{
		Name:       "User",
		SourcePath: "entities/user.ts",
		Artifacts: []graph.ArtifactInput{
			{Kind: graph.KindSchema, Path: "generated/user.schema.ts", Content: []byte("export const userSchema = {};")},
			{Kind: graph.KindMigration, Path: "migrations/001_user.sql", Content: []byte(migrationContent)},
		},
	}})
	require.NoError(t, err)
	return g
}

func TestApplyCreatesFilesAndState(t *testing.T) {
	root := t.TempDir()
	g := buildUser(t, "create table users ();")
	p := plan.Diff(g, state.EngineState{}, plan.Options{})

	var results []Result
	next, err := Apply(context.Background(), p, state.EngineState{}, root, func(_ plan.Step, r Result) {
		results = append(results, r)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "migrations/001_user.sql"))
	require.NoError(t, err)
	assert.Equal(t, "create table users ();", string(data), "written bytes match node content")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Changed)
	}

	require.Len(t, next, 2)
	rec := next["migration:user:migrations/001_user.sql"]
	assert.Equal(t, g.Nodes["migration:user:migrations/001_user.sql"].Hash, rec.Hash)
}

func TestApplyIdenticalBytesReportsUnchanged(t *testing.T) {
	root := t.TempDir()
	g := buildUser(t, "create table users ();")
	p := plan.Diff(g, state.EngineState{}, plan.Options{})

	prior, err := Apply(context.Background(), p, state.EngineState{}, root, nil)
	require.NoError(t, err)

	schemaPath := filepath.Join(root, "generated/user.schema.ts")
	before, err := os.Stat(schemaPath)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	// Force-create the same artifacts again: bytes are identical, so no
	// write may happen.
	var results []Result
	_, err = Apply(context.Background(), plan.Diff(g, state.EngineState{}, plan.Options{}), prior, root,
		func(_ plan.Step, r Result) { results = append(results, r) })
	require.NoError(t, err)

	for _, r := range results {
		assert.False(t, r.Changed)
	}
	after, err := os.Stat(schemaPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "identical content must not be rewritten")
}

func TestApplyDeleteRemovesFileAndSnapshot(t *testing.T) {
	root := t.TempDir()
	full := buildUser(t, "create table users ();")
	prior, err := Apply(context.Background(), plan.Diff(full, state.EngineState{}, plan.Options{}), state.EngineState{}, root, nil)
	require.NoError(t, err)

	// Migration removed from the declared outputs.
	slim, err := graph.Build([]graph.EntityInput{{
		Name:       "User",
		SourcePath: "entities/user.ts",
		Artifacts: []graph.ArtifactInput{
			{Kind: graph.KindSchema, Path: "generated/user.schema.ts", Content: []byte("export const userSchema = {};")},
		},
	}})
	require.NoError(t, err)

	p := plan.Diff(slim, prior, plan.Options{})
	next, err := Apply(context.Background(), p, prior, root, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "migrations/001_user.sql"))
	assert.True(t, os.IsNotExist(statErr), "deleted artifact is gone from disk")
	_, ok := next["migration:user:migrations/001_user.sql"]
	assert.False(t, ok, "snapshot entry removed")
	_, ok = next["schema:user:generated/user.schema.ts"]
	assert.True(t, ok, "retained artifact keeps its snapshot")
}

func TestApplyDeleteOfMissingFileIsNoop(t *testing.T) {
	root := t.TempDir()
	prior := state.EngineState{
		"doc:user:readme.md": {
			ID:         "doc:user:readme.md",
			Kind:       graph.KindDoc,
			Hash:       "h",
			TargetPath: "readme.md",
		},
	}

	empty, err := graph.Build(nil)
	require.NoError(t, err)
	p := plan.Diff(empty, prior, plan.Options{})
	require.Len(t, p.Steps, 1)

	var results []Result
	next, err := Apply(context.Background(), p, prior, root, func(_ plan.Step, r Result) {
		results = append(results, r)
	})
	require.NoError(t, err, "deleting an already-absent file is not an error")
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed)
	assert.Empty(t, next)
}

func TestApplyMissingContentAbortsRemainingSteps(t *testing.T) {
	root := t.TempDir()

	bad := plan.Plan{Steps: []plan.Step{
		{Kind: plan.StepCreate, Node: &graph.Node{
			ID: "schema:a:a.ts", Kind: graph.KindSchema, Mode: graph.ModeOutput,
			TargetPath: "a.ts", // no content
		}},
		{Kind: plan.StepCreate, Node: &graph.Node{
			ID: "schema:b:b.ts", Kind: graph.KindSchema, Mode: graph.ModeOutput,
			TargetPath: "b.ts", Content: []byte("b"),
		}},
	}}

	notified := 0
	next, err := Apply(context.Background(), bad, state.EngineState{}, root, func(plan.Step, Result) {
		notified++
	})
	require.Error(t, err)
	assert.True(t, IsStepError(err))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeMissingContent, se.Code)

	assert.Zero(t, notified, "failed step produces no observer call")
	assert.Empty(t, next, "nothing folded for the failed step")
	_, statErr := os.Stat(filepath.Join(root, "b.ts"))
	assert.True(t, os.IsNotExist(statErr), "remaining steps abandoned")
}

func TestApplyPartialFailureKeepsExecutedSnapshots(t *testing.T) {
	root := t.TempDir()

	p := plan.Plan{Steps: []plan.Step{
		{Kind: plan.StepCreate, Node: &graph.Node{
			ID: "schema:a:a.ts", Kind: graph.KindSchema, Mode: graph.ModeOutput,
			Hash: "ha", TargetPath: "a.ts", Content: []byte("a"),
		}},
		{Kind: plan.StepCreate, Node: &graph.Node{
			ID: "schema:b:b.ts", Kind: graph.KindSchema, Mode: graph.ModeOutput,
			Hash: "hb", TargetPath: "b.ts", // missing content fails here
		}},
	}}

	next, err := Apply(context.Background(), p, state.EngineState{}, root, nil)
	require.Error(t, err)

	// The first step's work is on disk and in the returned fold, so the
	// next cycle's diff sees it and self-heals.
	_, statErr := os.Stat(filepath.Join(root, "a.ts"))
	assert.NoError(t, statErr)
	_, ok := next["schema:a:a.ts"]
	assert.True(t, ok)
}

func TestApplyDeleteFallsBackToPreviousPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.md"), []byte("x"), 0o644))

	p := plan.Plan{Steps: []plan.Step{{
		Kind: plan.StepDelete,
		Node: &graph.Node{ID: "doc:a:old.md", Kind: graph.KindDoc, Mode: graph.ModeOutput},
		Previous: &state.SnapshotRecord{
			ID: "doc:a:old.md", Kind: graph.KindDoc, Hash: "h", TargetPath: "old.md",
		},
	}}}

	_, err := Apply(context.Background(), p, state.EngineState{}, root, nil)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "old.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApplyDeleteWithNoPathIsStepError(t *testing.T) {
	p := plan.Plan{Steps: []plan.Step{{
		Kind: plan.StepDelete,
		Node: &graph.Node{ID: "doc:a:x", Kind: graph.KindDoc, Mode: graph.ModeOutput},
	}}}

	_, err := Apply(context.Background(), p, state.EngineState{}, t.TempDir(), nil)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeMissingTarget, se.Code)
}

func TestApplyRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := buildUser(t, "m")
	p := plan.Diff(g, state.EngineState{}, plan.Options{})

	_, err := Apply(ctx, p, state.EngineState{}, t.TempDir(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyDoesNotMutatePriorState(t *testing.T) {
	root := t.TempDir()
	prior := state.EngineState{
		"doc:user:readme.md": {ID: "doc:user:readme.md", Kind: graph.KindDoc, Hash: "h", TargetPath: "readme.md"},
	}

	empty, err := graph.Build(nil)
	require.NoError(t, err)
	p := plan.Diff(empty, prior, plan.Options{})

	_, err = Apply(context.Background(), p, prior, root, nil)
	require.NoError(t, err)
	assert.Len(t, prior, 1, "input state is never mutated")
}
