package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func links(refs []Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Link
	}
	return out
}

func TestParseWikiLinkBasic(t *testing.T) {
	refs := parseLinks("# A\n\n[[B]]\n")
	require.Len(t, refs, 1)
	r := refs[0]
	assert.Equal(t, "B", r.Link)
	assert.Equal(t, "[[B]]", r.Original)
	assert.Equal(t, KindWikilink, r.Kind)
	assert.Equal(t, 3, r.Line)
	assert.Equal(t, TextLocator(5, 10), r.Locator)
}

func TestParseWikiLinkVariants(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		link     string
		original string
		kind     string
	}{
		{"alias", "[[B|alias]]\n", "B", "[[B|alias]]", KindWikilink},
		{"subpath", "[[B#heading]]\n", "B#heading", "[[B#heading]]", KindWikilink},
		{"self heading", "[[#Heading]]\n", "#Heading", "[[#Heading]]", KindWikilink},
		{"path", "[[sub/B]]\n", "sub/B", "[[sub/B]]", KindWikilink},
		{"embed", "![[img.png]]\n", "img.png", "![[img.png]]", KindEmbed},
		{"spaces trimmed", "[[ B ]]\n", "B", "[[ B ]]", KindWikilink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := parseLinks(tt.content)
			require.Len(t, refs, 1)
			assert.Equal(t, tt.link, refs[0].Link)
			assert.Equal(t, tt.original, refs[0].Original)
			assert.Equal(t, tt.kind, refs[0].Kind)
		})
	}
}

func TestParseWikiLinkEmptyIgnored(t *testing.T) {
	assert.Empty(t, parseLinks("[[]] and [[|alias]]\n"))
}

func TestParseEmbedLocatorIncludesBang(t *testing.T) {
	refs := parseLinks("x ![[img.png]]\n")
	require.Len(t, refs, 1)
	assert.Equal(t, TextLocator(2, 14), refs[0].Locator)
}

func TestParseMarkdownLinks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		link    string
		kind    string
	}{
		{"plain", "[text](sub/B.md)\n", "sub/B.md", KindMarkdown},
		{"relative", "[up](../B.md)\n", "../B.md", KindMarkdown},
		{"encoded", "[n](My%20Note.md)\n", "My Note.md", KindMarkdown},
		{"angle brackets", "[n](<My Note.md>)\n", "My Note.md", KindMarkdown},
		{"title", "[n](B.md \"Title\")\n", "B.md", KindMarkdown},
		{"subpath", "[n](B.md#Intro)\n", "B.md#Intro", KindMarkdown},
		{"image", "![alt](pic.png)\n", "pic.png", KindEmbed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := parseLinks(tt.content)
			require.Len(t, refs, 1)
			assert.Equal(t, tt.link, refs[0].Link)
			assert.Equal(t, tt.kind, refs[0].Kind)
		})
	}
}

func TestParseMarkdownLinkSkipsURLs(t *testing.T) {
	content := "[a](https://example.com) [b](http://x.y/z.md) [c](mailto:me@example.com)\n"
	assert.Empty(t, parseLinks(content))
}

func TestParseIgnoresCode(t *testing.T) {
	content := "```\n[[InFence]]\n```\n~~~\n[[Tilde]]\n~~~\n`[[X]]` [[Y]]\n"
	refs := parseLinks(content)
	require.Len(t, refs, 1)
	assert.Equal(t, "Y", refs[0].Link)

	// Offsets stay relative to the original content.
	start := len("```\n[[InFence]]\n```\n~~~\n[[Tilde]]\n~~~\n") + len("`[[X]]` ")
	assert.Equal(t, TextLocator(start, start+5), refs[0].Locator)
	assert.Equal(t, 7, refs[0].Line)
}

func TestMaskInlineCodeKeepsLength(t *testing.T) {
	line := "a `code [[x]]` b\n"
	masked := maskInlineCode(line)
	assert.Len(t, masked, len(line))
	assert.Equal(t, "a               b\n", masked)
}

func TestParseOrderedByOffset(t *testing.T) {
	refs := parseLinks("[x](B.md) [[C]] [y](D.md)\n")
	assert.Equal(t, []string{"B.md", "C", "D.md"}, links(refs))
	for i := 1; i < len(refs); i++ {
		assert.Less(t, refs[i-1].Locator.Start, refs[i].Locator.Start)
	}
}

func TestParseFrontmatterLinks(t *testing.T) {
	content := "---\nrelated: \"[[B]]\"\ntags: [x]\nlist:\n  - \"[[C|c]]\"\n---\nbody [[D]]\n"
	refs := parseLinks(content)
	require.Len(t, refs, 3)

	assert.Equal(t, "B", refs[0].Link)
	assert.Equal(t, KindFrontmatter, refs[0].Kind)
	assert.Equal(t, 14, refs[0].Locator.Start)
	assert.Equal(t, 19, refs[0].Locator.End)
	assert.Equal(t, "related", refs[0].Locator.String())
	assert.Equal(t, 2, refs[0].Line)

	assert.Equal(t, "C", refs[1].Link)
	assert.Equal(t, "[[C|c]]", refs[1].Original)
	assert.Equal(t, "list.0", refs[1].Locator.Key)
	assert.Equal(t, 42, refs[1].Locator.Start)
	assert.Equal(t, 5, refs[1].Line)

	assert.Equal(t, "D", refs[2].Link)
	assert.Equal(t, KindWikilink, refs[2].Kind)
	assert.Equal(t, TextLocator(60, 65), refs[2].Locator)
	assert.Equal(t, 7, refs[2].Line)
}

func TestParseFrontmatterInvalidYAMLSkipped(t *testing.T) {
	refs := parseLinks("---\nkey: \"[[X]]\n---\n[[Y]]\n")
	assert.Equal(t, []string{"Y"}, links(refs))
}

func TestParseUnclosedFrontmatterIsBody(t *testing.T) {
	refs := parseLinks("---\n[[A]]\n")
	assert.Equal(t, []string{"A"}, links(refs))
}

func TestMarkdownExtractor(t *testing.T) {
	refs := MarkdownExtractor{}.Extract([]byte("[[A]] ![[B]]"))
	assert.Equal(t, []string{"A", "B"}, links(refs))
	assert.Equal(t, KindEmbed, refs[1].Kind)
}

func TestIsBasenameLink(t *testing.T) {
	assert.True(t, isBasenameLink("B"))
	assert.False(t, isBasenameLink("sub/B"))
	assert.False(t, isBasenameLink("./B"))
	assert.False(t, isBasenameLink("/B"))
}
