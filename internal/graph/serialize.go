package graph

import "sort"

// Document is the deterministic on-disk form of a graph, used for
// inspection and debugging. Nodes and edges are sorted lexicographically
// by ID, independent of the traversal order used for planning, so the
// persisted representation is byte-stable across runs.
type Document struct {
	Version int    `json:"version"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// DocumentVersion is the current graph document schema version.
const DocumentVersion = 1

// ToDocument produces the sorted serialization of g.
//
// Artifact content is dropped from the document: it can be large, it is
// already on disk at each node's target path, and the document is never
// read back for planning.
func (g *Graph) ToDocument() Document {
	doc := Document{Version: DocumentVersion}

	doc.Nodes = make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		slim := *n
		slim.Content = nil
		doc.Nodes = append(doc.Nodes, slim)
	}
	sort.Slice(doc.Nodes, func(i, j int) bool {
		return doc.Nodes[i].ID < doc.Nodes[j].ID
	})

	doc.Edges = make([]Edge, len(g.Edges))
	copy(doc.Edges, g.Edges)
	sort.Slice(doc.Edges, func(i, j int) bool {
		a, b := doc.Edges[i], doc.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	return doc
}
