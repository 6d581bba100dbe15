package graph

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDocumentSortsNodesAndEdges(t *testing.T) {
	g, err := Build([]EntityInput{
		{
			Name:       "Zebra",
			SourcePath: "entities/zebra.ts",
			Artifacts: []ArtifactInput{
				{Kind: KindSchema, Path: "z.schema.ts", Content: []byte("z")},
			},
		},
		{
			Name:       "Apple",
			SourcePath: "entities/apple.ts",
			Artifacts: []ArtifactInput{
				{Kind: KindSchema, Path: "a.schema.ts", Content: []byte("a")},
			},
		},
	})
	require.NoError(t, err)

	doc := g.ToDocument()
	require.Len(t, doc.Nodes, 4)
	for i := 1; i < len(doc.Nodes); i++ {
		assert.Less(t, doc.Nodes[i-1].ID, doc.Nodes[i].ID, "nodes sorted by id")
	}
	for i := 1; i < len(doc.Edges); i++ {
		prev, cur := doc.Edges[i-1], doc.Edges[i]
		assert.True(t, prev.From < cur.From || (prev.From == cur.From && prev.To <= cur.To), "edges sorted")
	}
}

func TestToDocumentDropsContent(t *testing.T) {
	g, err := Build([]EntityInput{{
		Name:       "User",
		SourcePath: "entities/user.ts",
		Artifacts: []ArtifactInput{
			{Kind: KindSchema, Path: "user.schema.ts", Content: []byte("big blob")},
		},
	}})
	require.NoError(t, err)

	for _, n := range g.ToDocument().Nodes {
		assert.Nil(t, n.Content)
	}
	// The graph itself still carries content for the applier.
	assert.Equal(t, []byte("big blob"), g.Nodes["schema:user:user.schema.ts"].Content)
}

func TestToDocumentStableAcrossRebuilds(t *testing.T) {
	inputs := []EntityInput{{
		Name:       "User",
		SourcePath: "entities/user.ts",
		Definition: map[string]any{"fields": map[string]any{"id": "uuid"}},
		Artifacts: []ArtifactInput{
			{Kind: KindSchema, Path: "user.schema.ts", Content: []byte("s")},
			{Kind: KindMigration, Path: "001_user.sql", Content: []byte("m")},
		},
	}}

	g1, err := Build(inputs)
	require.NoError(t, err)
	g2, err := Build(inputs)
	require.NoError(t, err)

	d1, err := json.Marshal(g1.ToDocument())
	require.NoError(t, err)
	d2, err := json.Marshal(g2.ToDocument())
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestGraphDocumentGolden(t *testing.T) {
	g, err := Build([]EntityInput{{
		Name:       "User",
		SourcePath: "entities/user.ts",
		Definition: map[string]any{"fields": map[string]any{"id": "uuid", "email": "string"}},
		Artifacts: []ArtifactInput{
			{Kind: KindSchema, Path: "generated/user.schema.ts", Content: []byte("export const userSchema = {};")},
			{Kind: KindMigration, Path: "migrations/001_user.sql", Content: []byte("create table users ();")},
		},
	}})
	require.NoError(t, err)

	data, err := json.MarshalIndent(g.ToDocument(), "", "  ")
	require.NoError(t, err)

	gold := goldie.New(t)
	gold.Assert(t, "graph_document", data)
}
