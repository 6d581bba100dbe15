// Package engine owns the coherence cycle: discover entities, build the
// graph, diff it against persisted state, apply the plan, persist the
// result, and journal what happened.
//
// The engine provides no internal locking; Watch guarantees at-most-one
// concurrent cycle by coalescing triggers through a single-slot queue.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tsera-dev/tsera/internal/apply"
	"github.com/tsera-dev/tsera/internal/discover"
	"github.com/tsera-dev/tsera/internal/graph"
	"github.com/tsera-dev/tsera/internal/journal"
	"github.com/tsera-dev/tsera/internal/plan"
	"github.com/tsera-dev/tsera/internal/state"
)

// DiscoverFunc supplies the entity inputs for one cycle.
type DiscoverFunc func() ([]graph.EntityInput, error)

// Config holds engine construction options. Paths are explicit; the
// engine never consults or mutates the process working directory.
type Config struct {
	// Root is the project root: artifact paths resolve against it and
	// the state directory lives under it.
	Root string

	// EntitiesDir holds entity manifests. It is also the watch root.
	// Ignored for discovery when Discover is set.
	EntitiesDir string

	// Discover overrides manifest loading; tests inject inputs here.
	Discover DiscoverFunc

	// WatchDebounce is the watcher's quiet window; zero means the
	// watcher default.
	WatchDebounce time.Duration

	// WatchIgnore extends the watcher's ignore list.
	WatchIgnore []string

	// Journal enables cycle journaling in the state directory.
	Journal bool

	Logger *slog.Logger
}

// Engine runs coherence cycles for one project.
type Engine struct {
	root     string
	discover DiscoverFunc
	watchDir string
	debounce time.Duration
	ignore   []string
	store    *state.Store
	journal  *journal.Journal
	logger   *slog.Logger
}

// StepResult pairs an executed step with its filesystem outcome.
type StepResult struct {
	Step   plan.Step
	Result apply.Result
}

// CycleReport summarizes one cycle: observe, plan, apply, persist.
type CycleReport struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Summary  plan.Summary
	Steps    []StepResult
}

// New creates an engine. The journal database is opened eagerly when
// journaling is enabled; Close releases it.
func New(cfg Config) (*Engine, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("engine: root path is required")
	}

	disc := cfg.Discover
	if disc == nil {
		if cfg.EntitiesDir == "" {
			return nil, fmt.Errorf("engine: either EntitiesDir or Discover is required")
		}
		dir := cfg.EntitiesDir
		disc = func() ([]graph.EntityInput, error) { return discover.Load(dir) }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		root:     cfg.Root,
		discover: disc,
		watchDir: cfg.EntitiesDir,
		debounce: cfg.WatchDebounce,
		ignore:   cfg.WatchIgnore,
		store:    state.NewStore(cfg.Root),
		logger:   logger,
	}
	if e.watchDir == "" {
		e.watchDir = cfg.Root
	}

	if cfg.Journal {
		// The database lives in the state directory, which may not exist
		// before the first cycle persists anything.
		if err := os.MkdirAll(e.store.Dir(), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		j, err := journal.Open(filepath.Join(e.store.Dir(), journal.FileName))
		if err != nil {
			return nil, err
		}
		e.journal = j
	}

	return e, nil
}

// Close releases engine resources.
func (e *Engine) Close() error {
	if e.journal != nil {
		return e.journal.Close()
	}
	return nil
}

// Journal returns the cycle journal, or nil when journaling is off.
func (e *Engine) Journal() *journal.Journal {
	return e.journal
}

// State reads the persisted engine state.
func (e *Engine) State() (state.EngineState, error) {
	return e.store.Read()
}

// Plan computes the current drift without touching the filesystem:
// discover, build, read state, diff.
func (e *Engine) Plan(ctx context.Context, opts plan.Options) (plan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return plan.Plan{}, err
	}

	inputs, err := e.discover()
	if err != nil {
		return plan.Plan{}, fmt.Errorf("discover entities: %w", err)
	}

	g, err := graph.Build(inputs)
	if err != nil {
		return plan.Plan{}, err
	}

	prior, err := e.store.Read()
	if err != nil {
		return plan.Plan{}, err
	}

	return plan.Diff(g, prior, opts), nil
}

// RunOnce executes one full cycle and persists the resulting state and
// graph document. On an apply failure the state folded so far is still
// persisted, so the next cycle's fresh diff reconciles the remainder.
func (e *Engine) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{ID: uuid.NewString(), Started: time.Now()}
	e.logger.Debug("cycle starting", "cycle", report.ID)

	inputs, err := e.discover()
	if err != nil {
		return e.finish(ctx, report, fmt.Errorf("discover entities: %w", err))
	}

	g, err := graph.Build(inputs)
	if err != nil {
		return e.finish(ctx, report, err)
	}

	prior, err := e.store.Read()
	if err != nil {
		return e.finish(ctx, report, err)
	}

	p := plan.Diff(g, prior, plan.Options{})
	report.Summary = p.Summary

	next, applyErr := apply.Apply(ctx, p, prior, e.root, func(step plan.Step, res apply.Result) {
		report.Steps = append(report.Steps, StepResult{Step: step, Result: res})
	})

	// Persist whatever was folded, even on failure: executed steps must
	// be remembered or the next diff would re-plan them blindly.
	if err := e.store.Write(next); err != nil && applyErr == nil {
		applyErr = err
	}
	if err := e.store.WriteGraph(g.ToDocument()); err != nil && applyErr == nil {
		applyErr = err
	}

	if applyErr != nil {
		return e.finish(ctx, report, applyErr)
	}

	e.logger.Info("cycle complete",
		"cycle", report.ID,
		"create", p.Summary.Create,
		"update", p.Summary.Update,
		"delete", p.Summary.Delete,
		"changed", p.Summary.Changed,
	)
	return e.finish(ctx, report, nil)
}

// finish stamps the report, journals it, and returns it with err.
func (e *Engine) finish(ctx context.Context, report CycleReport, err error) (CycleReport, error) {
	report.Finished = time.Now()

	if e.journal != nil {
		rec := journal.CycleRecord{
			ID:       report.ID,
			Started:  report.Started,
			Finished: report.Finished,
			Summary:  report.Summary,
		}
		if err != nil {
			rec.Err = err.Error()
		}
		for _, sr := range report.Steps {
			rec.Steps = append(rec.Steps, journal.StepRecord{
				Kind:    sr.Step.Kind,
				NodeID:  sr.Step.Node.ID,
				Path:    sr.Result.Path,
				Changed: sr.Result.Changed,
			})
		}
		if jerr := e.journal.Record(ctx, rec); jerr != nil {
			e.logger.Warn("journal write failed", "cycle", report.ID, "error", jerr)
		}
	}

	if err != nil {
		e.logger.Error("cycle failed", "cycle", report.ID, "error", err)
	}
	return report, err
}
