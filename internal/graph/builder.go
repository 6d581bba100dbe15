package graph

import (
	"fmt"
	"strings"

	"github.com/tsera-dev/tsera/internal/hash"
)

// EntityInput is one declared entity plus the artifacts derived from it,
// as supplied by the discovery collaborator. The builder never scans or
// loads entity declarations itself.
type EntityInput struct {
	Name       string
	SourcePath string

	// Definition is the entity's declared shape; it participates in the
	// entity node's hash so a definition edit is visible as drift even
	// before any artifact content changes.
	Definition map[string]any

	Artifacts []ArtifactInput
}

// ArtifactInput is one generated output declared for an entity.
type ArtifactInput struct {
	Kind    Kind
	Path    string
	Content []byte

	// DependsOn lists additional node IDs this artifact depends on,
	// beyond its own entity. IDs must resolve within the same graph.
	DependsOn []string

	Label string
	Data  map[string]any
}

// EntityNodeID returns the node ID for a declared entity.
func EntityNodeID(name string) string {
	return "entity:" + name
}

// ArtifactNodeID returns the node ID for an artifact of an entity.
func ArtifactNodeID(kind Kind, entityName, path string) string {
	return string(kind) + ":" + Slug(entityName) + ":" + path
}

// Slug lowercases a name and replaces runs of non-alphanumerics with a
// single hyphen, for use inside node IDs.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Build constructs a validated, topologically ordered graph from entity
// inputs.
//
// One input node is created per entity and one output node per artifact,
// with an edge from each entity to each of its artifacts and one edge per
// explicit dependency. Validation (unknown edge endpoints, duplicate IDs,
// cycles) happens before the graph is returned; a failed build returns no
// partial graph.
func Build(inputs []EntityInput) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node)}

	for _, in := range inputs {
		entityID := EntityNodeID(in.Name)
		entityHash, err := hash.Value(map[string]any{
			"entityDefinition": in.Definition,
			"sourcePath":       in.SourcePath,
		}, hash.Options{Version: hash.ToolVersion})
		if err != nil {
			return nil, fmt.Errorf("hash entity %q: %w", in.Name, err)
		}

		if err := addNode(g, &Node{
			ID:         entityID,
			Kind:       KindEntity,
			Mode:       ModeInput,
			Label:      in.Name,
			Hash:       entityHash,
			SourcePath: in.SourcePath,
		}); err != nil {
			return nil, err
		}

		for _, art := range in.Artifacts {
			if art.Kind == KindEntity || !art.Kind.Valid() {
				return nil, &Error{
					Code:    ErrCodeInvalidKind,
					Message: fmt.Sprintf("entity %q declares artifact of kind %q", in.Name, art.Kind),
				}
			}

			artID := ArtifactNodeID(art.Kind, in.Name, art.Path)
			artHash, err := hash.Value(map[string]any{
				"path":       art.Path,
				"content":    art.Content,
				"entityName": in.Name,
			}, hash.Options{Version: hash.ToolVersion, Salt: string(art.Kind)})
			if err != nil {
				return nil, fmt.Errorf("hash artifact %q: %w", artID, err)
			}

			label := art.Label
			if label == "" {
				label = fmt.Sprintf("%s (%s)", art.Path, art.Kind)
			}

			if err := addNode(g, &Node{
				ID:         artID,
				Kind:       art.Kind,
				Mode:       ModeOutput,
				Label:      label,
				Hash:       artHash,
				SourcePath: in.SourcePath,
				TargetPath: art.Path,
				Content:    art.Content,
				Data:       art.Data,
			}); err != nil {
				return nil, err
			}

			g.Edges = append(g.Edges, Edge{From: entityID, To: artID})
			for _, dep := range art.DependsOn {
				g.Edges = append(g.Edges, Edge{From: dep, To: artID})
			}
		}
	}

	if err := validateEdges(g); err != nil {
		return nil, err
	}

	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

func addNode(g *Graph, n *Node) error {
	if _, exists := g.Nodes[n.ID]; exists {
		return &Error{
			Code:    ErrCodeDuplicateNode,
			Message: fmt.Sprintf("duplicate node id %q", n.ID),
		}
	}
	g.Nodes[n.ID] = n
	return nil
}

// validateEdges rejects any edge whose endpoint is not a known node.
// This runs before ordering so a dangling dependency can never surface
// as a confusing cycle report.
func validateEdges(g *Graph) error {
	for i := range g.Edges {
		e := g.Edges[i]
		if _, ok := g.Nodes[e.From]; !ok {
			return &Error{
				Code:    ErrCodeUnknownEndpoint,
				Message: fmt.Sprintf("edge references unknown node %q", e.From),
				Edge:    &e,
			}
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return &Error{
				Code:    ErrCodeUnknownEndpoint,
				Message: fmt.Sprintf("edge references unknown node %q", e.To),
				Edge:    &e,
			}
		}
	}
	return nil
}
