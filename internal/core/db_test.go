package core

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	f := newServiceFixture(t, map[string]string{
		"A.md":         "[[B]] ![[img.png]]",
		"B.md":         "[[A]]",
		"img.png":      "png",
		"board.canvas": `{"nodes": [{"type": "file", "file": "B.md"}, {"type": "text", "text": "[[A]]"}]}`,
	}, nil)

	out := DefaultExportPath(f.root)
	result, err := Export(context.Background(), f.svc, out)
	require.NoError(t, err)
	assert.Equal(t, out, result.Path)
	assert.Equal(t, 5, result.Edges)
	assert.Equal(t, 4, result.Nodes)
	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))

	db, err := sql.Open("sqlite", out)
	require.NoError(t, err)
	defer db.Close()

	var edges int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&edges))
	assert.Equal(t, 5, edges)

	rows, err := db.Query(`
		SELECT s.path, t.path, t.type, e.link_type, e.locator, e.node_index, e.link_index
		FROM edges e
		JOIN nodes s ON s.id = e.source_id
		JOIN nodes t ON t.id = e.target_id
		WHERE s.path = 'board.canvas'
		ORDER BY e.id`)
	require.NoError(t, err)
	defer rows.Close()

	type edge struct {
		source, target, targetType, kind, locator string
		node, link                                sql.NullInt64
	}
	var got []edge
	for rows.Next() {
		var e edge
		require.NoError(t, rows.Scan(&e.source, &e.target, &e.targetType, &e.kind, &e.locator, &e.node, &e.link))
		got = append(got, e)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "A.md", got[0].target)
	assert.Equal(t, KindCanvasText, got[0].kind)
	assert.Equal(t, "nodes.1.text.0", got[0].locator)
	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, got[0].link)
	assert.Equal(t, "B.md", got[1].target)
	assert.Equal(t, "nodes.0.file", got[1].locator)
	assert.False(t, got[1].link.Valid)

	// Exporting again replaces the snapshot.
	_, err = Export(context.Background(), f.svc, out)
	require.NoError(t, err)
}

func TestExportCancelled(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"A.md": "[[B]]", "B.md": ""}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(t.TempDir(), "graph.sqlite")
	_, err := Export(ctx, f.svc, out)
	assert.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
