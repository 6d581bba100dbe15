// Package journal records executed cycles in a SQLite database under
// the state directory. The journal is an audit trail for the history
// command; the planner never consults it.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tsera-dev/tsera/internal/plan"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the journal database file name inside the state directory.
const FileName = "history.db"

// StepRecord is one executed step within a cycle.
type StepRecord struct {
	Kind    plan.StepKind
	NodeID  string
	Path    string
	Changed bool
}

// CycleRecord is one completed (or failed) engine cycle.
type CycleRecord struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Summary  plan.Summary
	Steps    []StepRecord

	// Err holds the failure message for aborted cycles, empty otherwise.
	Err string
}

// Journal is a durable log of engine cycles.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
// Idempotent: pragmas and schema are applied on every open.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one cycle and its steps atomically.
func (j *Journal) Record(ctx context.Context, rec CycleRecord) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cycles (id, started_at, finished_at, creates, updates, deletes, noops, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Started.UTC().Format(time.RFC3339Nano),
		rec.Finished.UTC().Format(time.RFC3339Nano),
		rec.Summary.Create,
		rec.Summary.Update,
		rec.Summary.Delete,
		rec.Summary.Noop,
		rec.Err,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}

	for i, step := range rec.Steps {
		changed := 0
		if step.Changed {
			changed = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cycle_steps (cycle_id, position, kind, node_id, path, changed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, string(step.Kind), step.NodeID, step.Path, changed)
		if err != nil {
			return fmt.Errorf("record step %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent cycles, newest first, including their
// steps. limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, limit int) ([]CycleRecord, error) {
	query := `
		SELECT id, started_at, finished_at, creates, updates, deletes, noops, error
		FROM cycles ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var recs []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &started, &finished,
			&rec.Summary.Create, &rec.Summary.Update, &rec.Summary.Delete, &rec.Summary.Noop,
			&rec.Err); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		rec.Started, _ = time.Parse(time.RFC3339Nano, started)
		rec.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		rec.Summary.Total = rec.Summary.Create + rec.Summary.Update + rec.Summary.Delete + rec.Summary.Noop
		rec.Summary.Changed = rec.Summary.Create+rec.Summary.Update+rec.Summary.Delete > 0
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}

	for i := range recs {
		steps, err := j.listSteps(ctx, recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Steps = steps
	}
	return recs, nil
}

func (j *Journal) listSteps(ctx context.Context, cycleID string) ([]StepRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, node_id, path, changed
		FROM cycle_steps WHERE cycle_id = ? ORDER BY position
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var s StepRecord
		var kind string
		var changed int
		if err := rows.Scan(&kind, &s.NodeID, &s.Path, &changed); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Kind = plan.StepKind(kind)
		s.Changed = changed != 0
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
