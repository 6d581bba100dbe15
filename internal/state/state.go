// Package state persists the engine's memory of what was last written:
// one snapshot record per applied artifact, plus the sorted graph
// document kept alongside it for inspection.
package state

import (
	"github.com/tsera-dev/tsera/internal/graph"
)

// SnapshotRecord is the persisted subset of an output node. It is all
// the planner needs to detect drift on the next cycle.
type SnapshotRecord struct {
	ID         string     `json:"id"`
	Kind       graph.Kind `json:"kind"`
	Hash       string     `json:"hash"`
	TargetPath string     `json:"targetPath,omitempty"`
	SourcePath string     `json:"sourcePath,omitempty"`
	Label      string     `json:"label,omitempty"`
}

// RecordFromNode derives a snapshot record from an output node.
func RecordFromNode(n *graph.Node) SnapshotRecord {
	return SnapshotRecord{
		ID:         n.ID,
		Kind:       n.Kind,
		Hash:       n.Hash,
		TargetPath: n.TargetPath,
		SourcePath: n.SourcePath,
		Label:      n.Label,
	}
}

// EngineState maps node ID to the snapshot recorded at last apply.
// It is the sole persisted memory between cycles: read at cycle start,
// replaced (never mutated) at cycle end.
type EngineState map[string]SnapshotRecord

// Clone returns an independent copy of s.
func (s EngineState) Clone() EngineState {
	out := make(EngineState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// WithRecord returns a copy of s with rec inserted (or replaced).
func (s EngineState) WithRecord(rec SnapshotRecord) EngineState {
	out := s.Clone()
	out[rec.ID] = rec
	return out
}

// Without returns a copy of s with id removed.
func (s EngineState) Without(id string) EngineState {
	out := s.Clone()
	delete(out, id)
	return out
}
