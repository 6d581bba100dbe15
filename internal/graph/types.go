// Package graph builds the content-addressed dependency graph linking
// declared entities to the artifacts generated from them.
//
// A Graph is rebuilt from scratch on every cycle and never mutated in
// place; the planner diffs a fresh graph against the persisted snapshot
// state to decide what to write.
package graph

import "fmt"

// Kind identifies a node's category. Artifact kinds also act as hash
// salts, so moving an artifact between kinds forces regeneration.
type Kind string

const (
	KindEntity        Kind = "entity"
	KindSchema        Kind = "schema"
	KindOpenAPI       Kind = "openapi"
	KindMigration     Kind = "migration"
	KindTest          Kind = "test"
	KindDoc           Kind = "doc"
	KindDrizzleSchema Kind = "drizzle-schema"
)

// ArtifactKinds enumerates the kinds an output node may carry.
var ArtifactKinds = []Kind{
	KindSchema,
	KindOpenAPI,
	KindMigration,
	KindTest,
	KindDoc,
	KindDrizzleSchema,
}

// Valid reports whether k is a known node kind.
func (k Kind) Valid() bool {
	if k == KindEntity {
		return true
	}
	for _, ak := range ArtifactKinds {
		if k == ak {
			return true
		}
	}
	return false
}

// Mode is the orthogonal input/output tag on a node.
//
// Input nodes represent declared entities; they anchor edges but are
// never planned or snapshotted. Output nodes represent generated
// artifacts and are the only nodes the planner and state layer see.
type Mode string

const (
	ModeInput  Mode = "input"
	ModeOutput Mode = "output"
)

// Node is one vertex in the coherence graph.
type Node struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Mode       Mode           `json:"mode"`
	Label      string         `json:"label"`
	Hash       string         `json:"hash"`
	SourcePath string         `json:"sourcePath,omitempty"`
	TargetPath string         `json:"targetPath,omitempty"`
	Content    []byte         `json:"content,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Edge is a production/dependency relation between node IDs.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is an immutable snapshot of entities, artifacts, and the
// relations between them.
type Graph struct {
	// Nodes maps node ID to node. IDs are unique by construction.
	Nodes map[string]*Node

	// Edges lists every relation, in insertion order.
	Edges []Edge

	// Order is a topologically valid node ordering covering every node.
	Order []string
}

// OutputNodes returns output-mode nodes in topological order.
// These are the only nodes that participate in planning.
func (g *Graph) OutputNodes() []*Node {
	var out []*Node
	for _, id := range g.Order {
		if n := g.Nodes[id]; n.Mode == ModeOutput {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node with the given ID, or an error if absent.
func (g *Graph) Node(id string) (*Node, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("graph: no node %q", id)
	}
	return n, nil
}
