package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsera-dev/tsera/internal/graph"
)

// DirName is the reserved project-relative state directory. Everything
// tsera persists lives under it, and the watcher ignores it by default
// so state writes never retrigger a cycle.
const DirName = ".tsera"

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

const (
	manifestFile = "manifest.json"
	graphFile    = "graph.json"
)

// Manifest is the versioned on-disk form of the engine state.
type Manifest struct {
	Version   int         `json:"version"`
	Snapshots EngineState `json:"snapshots"`
}

// Store reads and writes the two state documents under root/.tsera.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given project root.
// No I/O happens until a read or write.
func NewStore(root string) *Store {
	return &Store{dir: filepath.Join(root, DirName)}
}

// Dir returns the absolute state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Read loads the persisted engine state. A missing manifest yields an
// empty state without error, so a first run plans a create for every
// output node.
func (s *Store) Read() (EngineState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if os.IsNotExist(err) {
		return EngineState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, ManifestVersion)
	}
	if m.Snapshots == nil {
		m.Snapshots = EngineState{}
	}
	return m.Snapshots, nil
}

// Write persists state as the new manifest.
func (s *Store) Write(st EngineState) error {
	m := Manifest{Version: ManifestVersion, Snapshots: st}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileIfChanged(filepath.Join(s.dir, manifestFile), append(data, '\n'))
}

// WriteGraph persists the sorted graph document next to the manifest.
// The document is for inspection and debugging only; planning never
// reads it back.
func (s *Store) WriteGraph(doc graph.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph document: %w", err)
	}
	return writeFileIfChanged(filepath.Join(s.dir, graphFile), append(data, '\n'))
}

// writeFileIfChanged writes data to path only when the existing bytes
// differ, creating parent directories as needed. This keeps file mtimes
// quiet when nothing changed, the same discipline the applier uses for
// artifact writes.
func writeFileIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
