package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryotapoi/backlinks/internal/testutil"
)

func TestScannerBacklinks(t *testing.T) {
	root := testutil.WriteVault(t, map[string]string{
		"A.md":         "[[B]] [[B]]",
		"C.md":         "[b](B.md)",
		"B.md":         "",
		"skip/D.md":    "[[B]]",
		"board.canvas": `{"nodes": [{"type": "file", "file": "B.md"}]}`,
		"bad.canvas":   `{"nodes": [`,
	})
	v, err := NewVault(root)
	require.NoError(t, err)
	docs, err := v.List(context.Background())
	require.NoError(t, err)
	resolver := NewVaultResolver(0)
	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	resolver.Reset(paths)

	cfg := DefaultConfig()
	cfg.Exclude.Paths = []string{"skip/*"}
	s := &Scanner{Store: v, Resolver: resolver, Config: cfg}

	bl, err := s.Backlinks(context.Background(), "B.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "board.canvas", "C.md"}, sources(bl))
	assert.Len(t, bl[0].References, 2)
	assert.Equal(t, "B.md", bl[0].References[0].Target)

	disabled := false
	cfg.Canvas.Enabled = &disabled
	s.Config = cfg
	bl, err = s.Backlinks(context.Background(), "B.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "C.md"}, sources(bl))
}
