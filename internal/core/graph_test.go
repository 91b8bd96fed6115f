package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(paths ...string) (*Graph, *VaultResolver) {
	r := newTestResolver(paths...)
	return NewGraph(GraphOptions{Resolver: r}), r
}

func ref(link string, start int) Reference {
	return Reference{
		Link:     link,
		Original: "[[" + link + "]]",
		Kind:     KindWikilink,
		Line:     1,
		Locator:  TextLocator(start, start+len(link)+4),
	}
}

func sources(bl []Backlink) []string {
	out := make([]string, len(bl))
	for i, b := range bl {
		out[i] = b.Source
	}
	return out
}

func TestGraphRefreshAndQuery(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md", "C.md")

	n := g.Refresh("A.md", []Reference{ref("B", 10)})
	assert.Equal(t, 1, n)

	bl := g.Backlinks("B.md")
	require.Len(t, bl, 1)
	assert.Equal(t, "A.md", bl[0].Source)
	require.Len(t, bl[0].References, 1)
	got := bl[0].References[0]
	assert.Equal(t, "A.md", got.Source)
	assert.Equal(t, "B.md", got.Target)
	assert.Equal(t, 10, got.Locator.Start)

	assert.Equal(t, []string{"B.md"}, g.Targets("A.md"))
	assert.Equal(t, []string{"A.md"}, g.Sources("B.md"))
	assert.Empty(t, g.Backlinks("C.md"))
	assert.NoError(t, g.Check())
}

func TestGraphRemoveSourceClearsBucket(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md")
	g.Refresh("A.md", []Reference{ref("B", 10)})

	g.Remove("A.md")
	assert.Empty(t, g.Backlinks("B.md"))
	assert.Empty(t, g.Targets("A.md"))
	assert.NoError(t, g.Check())
}

func TestGraphUnknownPath(t *testing.T) {
	g, _ := newTestGraph("A.md")
	assert.Empty(t, g.Backlinks("ghost.md"))
	assert.Empty(t, g.Targets("ghost.md"))
	g.Remove("ghost.md")
	assert.NoError(t, g.Check())
}

func TestGraphRefreshIdempotent(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md", "C.md")
	refs := []Reference{ref("B", 0), ref("C", 10), ref("B", 20)}

	g.Refresh("A.md", refs)
	first := g.Snapshot()
	g.Refresh("A.md", refs)
	assert.Equal(t, first, g.Snapshot())
	assert.Equal(t, GraphStats{Sources: 1, Targets: 2, Edges: 2, References: 3}, g.Stats())
}

func TestGraphRefreshReplacesEdges(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md", "C.md")
	g.Refresh("A.md", []Reference{ref("B", 0)})
	g.Refresh("A.md", []Reference{ref("C", 0)})

	assert.Empty(t, g.Backlinks("B.md"))
	assert.Equal(t, []string{"A.md"}, g.Sources("C.md"))
	assert.NoError(t, g.Check())

	g.Refresh("A.md", nil)
	assert.Equal(t, GraphStats{}, g.Stats())
}

func TestGraphRefreshDeduplicatesLocations(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md")
	dup := ref("B", 5)
	dup.Original = "[[B|alias]]"
	g.Refresh("A.md", []Reference{ref("B", 5), dup, ref("B", 30)})

	bl := g.Backlinks("B.md")
	require.Len(t, bl, 1)
	require.Len(t, bl[0].References, 2)
	assert.Equal(t, "[[B]]", bl[0].References[0].Original)
	assert.Equal(t, 30, bl[0].References[1].Locator.Start)
}

func TestGraphReferencesOrderedByLocator(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md")
	g.Refresh("A.md", []Reference{
		{Link: "B", Locator: NestedLocator(1, 1, 8, 13)},
		{Link: "B", Locator: NodeLocator(0)},
		{Link: "B", Locator: NestedLocator(1, 0, 0, 5)},
		{Link: "B", Locator: TextLocator(40, 45)},
	})
	bl := g.Backlinks("B.md")
	require.Len(t, bl, 1)
	var got []string
	for _, r := range bl[0].References {
		got = append(got, r.Locator.String())
	}
	assert.Equal(t, []string{"40-45", "nodes.0.file", "nodes.1.text.0", "nodes.1.text.1"}, got)
}

func TestGraphRemoveTargetRecordsDangling(t *testing.T) {
	g, r := newTestGraph("A.md", "B.md", "C.md")
	g.Refresh("A.md", []Reference{ref("B", 0), ref("C", 10)})
	g.Refresh("C.md", []Reference{ref("B", 0)})

	r.Remove("B.md")
	g.Remove("B.md")

	assert.Empty(t, g.Backlinks("B.md"))
	assert.Equal(t, []string{"C.md"}, g.Targets("A.md"))
	assert.Empty(t, g.Targets("C.md"))
	assert.Equal(t, []string{"A.md", "C.md"}, g.Dangling("b"))
	assert.NoError(t, g.Check())

	// Re-creating the target lets the dangling sources resolve again.
	r.Add("B.md")
	for _, s := range g.Dangling("b") {
		refs := []Reference{ref("B", 0)}
		if s == "A.md" {
			refs = append(refs, ref("C", 10))
		}
		g.Refresh(s, refs)
	}
	assert.Equal(t, []string{"A.md", "C.md"}, g.Sources("B.md"))
	assert.Empty(t, g.Dangling("b"))
	assert.Empty(t, g.Unresolved())
}

func TestGraphUnresolved(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md")
	g.Refresh("B.md", []Reference{ref("Nowhere", 0)})
	g.Refresh("A.md", []Reference{ref("Ghost", 0), ref("B", 10)})

	un := g.Unresolved()
	require.Len(t, un, 2)
	assert.Equal(t, "A.md", un[0].Source)
	assert.Equal(t, "Ghost", un[0].Link)
	assert.Equal(t, "B.md", un[1].Source)
	assert.Equal(t, []string{"B.md"}, g.Dangling("nowhere"))
	assert.Equal(t, 2, g.Stats().Dangling)

	g.Refresh("B.md", nil)
	assert.Empty(t, g.Dangling("nowhere"))
}

func TestGraphBacklinksSortedByComparer(t *testing.T) {
	g, _ := newTestGraph("Note 10.md", "Note 2.md", "b.md", "T.md")
	for _, s := range []string{"Note 10.md", "Note 2.md", "b.md"} {
		g.Refresh(s, []Reference{ref("T", 0)})
	}
	assert.Equal(t, []string{"b.md", "Note 2.md", "Note 10.md"}, sources(g.Backlinks("T.md")))

	g.SetComparer(ComparerFor(SortAlphabeticalReverse))
	assert.Equal(t, []string{"Note 10.md", "Note 2.md", "b.md"}, sources(g.Backlinks("T.md")))
}

func TestGraphEdges(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md", "C.md")
	g.Refresh("C.md", []Reference{ref("A", 0)})
	g.Refresh("A.md", []Reference{ref("B", 20), ref("B", 0)})
	g.Refresh("B.md", []Reference{ref("A", 0)})

	var got []string
	g.Edges(func(r Reference) bool {
		got = append(got, fmt.Sprintf("%s<-%s@%d", r.Target, r.Source, r.Locator.Start))
		return true
	})
	assert.Equal(t, []string{"A.md<-B.md@0", "A.md<-C.md@0", "B.md<-A.md@0", "B.md<-A.md@20"}, got)

	count := 0
	g.Edges(func(Reference) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestGraphCheckDetectsDivergence(t *testing.T) {
	g, _ := newTestGraph("A.md", "B.md")
	g.Refresh("A.md", []Reference{ref("B", 0)})
	delete(g.backlinks, "B.md")
	assert.ErrorIs(t, g.Check(), ErrInvariant)
}

func TestGraphConcurrentRefresh(t *testing.T) {
	paths := []string{"T.md"}
	for i := range 20 {
		paths = append(paths, fmt.Sprintf("S%d.md", i))
	}
	g, _ := newTestGraph(paths...)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := fmt.Sprintf("S%d.md", i)
			for range 50 {
				g.Refresh(src, []Reference{ref("T", 0)})
				_ = g.Backlinks("T.md")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, g.Sources("T.md"), 20)
	assert.NoError(t, g.Check())
}
