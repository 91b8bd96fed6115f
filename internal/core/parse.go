package core

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownExtractor extracts wikilinks, embeds, markdown links and
// frontmatter property links from markdown content.
type MarkdownExtractor struct{}

// Extract returns the references found in content ordered by offset.
func (MarkdownExtractor) Extract(content []byte) []Reference {
	return parseLinks(string(content))
}

// parseLinks parses all links from content. Offsets are byte offsets into content.
func parseLinks(content string) []Reference {
	var out []Reference
	lines := strings.SplitAfter(content, "\n")

	offset := 0
	startLine := 0
	if fmEnd := frontmatterEnd(lines); fmEnd > 0 {
		out = append(out, parseFrontmatter(lines[:fmEnd+1])...)
		for _, l := range lines[:fmEnd+1] {
			offset += len(l)
		}
		startLine = fmEnd + 1
	}

	inFence := false
	for i := startLine; i < len(lines); i++ {
		line := lines[i]
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "```") || strings.HasPrefix(trim, "~~~") {
			inFence = !inFence
		} else if !inFence {
			clean := maskInlineCode(line)
			out = append(out, parseWikiLinks(clean, offset, i+1)...)
			out = append(out, parseMarkdownLinks(clean, offset, i+1)...)
		}
		offset += len(line)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return CompareLocators(out[i].Locator, out[j].Locator) < 0
	})
	return out
}

// maskInlineCode blanks inline code spans with spaces so offsets stay intact.
func maskInlineCode(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	b := []byte(line)
	inCode := false
	for i, ch := range b {
		if ch == '`' {
			inCode = !inCode
			b[i] = ' '
			continue
		}
		if inCode && ch != '\n' && ch != '\r' {
			b[i] = ' '
		}
	}
	return string(b)
}

func parseWikiLinks(line string, base, lineNum int) []Reference {
	var out []Reference
	pos := 0
	for {
		open := strings.Index(line[pos:], "[[")
		if open == -1 {
			break
		}
		open += pos
		closeIdx := strings.Index(line[open+2:], "]]")
		if closeIdx == -1 {
			break
		}
		end := open + 2 + closeIdx + 2
		inner := line[open+2 : end-2]

		start, kind := open, KindWikilink
		if open > 0 && line[open-1] == '!' {
			start, kind = open-1, KindEmbed
		}
		if link := strings.TrimSpace(splitAlias(inner)); link != "" {
			out = append(out, Reference{
				Link:     link,
				Original: line[start:end],
				Kind:     kind,
				Line:     lineNum,
				Locator:  TextLocator(base+start, base+end),
			})
		}
		pos = end
	}
	return out
}

func parseMarkdownLinks(line string, base, lineNum int) []Reference {
	var out []Reference
	pos := 0
	for {
		open := strings.Index(line[pos:], "[")
		if open == -1 {
			break
		}
		open += pos
		// Skip wikilinks entirely.
		if open+1 < len(line) && line[open+1] == '[' {
			closeIdx := strings.Index(line[open+2:], "]]")
			if closeIdx == -1 {
				break
			}
			pos = open + 2 + closeIdx + 2
			continue
		}
		mid := strings.Index(line[open:], "](")
		if mid == -1 {
			break
		}
		mid += open
		closeIdx := strings.Index(line[mid+2:], ")")
		if closeIdx == -1 {
			break
		}
		end := mid + 2 + closeIdx + 1
		raw := strings.TrimSpace(line[mid+2 : end-1])

		start, kind := open, KindMarkdown
		if open > 0 && line[open-1] == '!' {
			start, kind = open-1, KindEmbed
		}
		if target := markdownTarget(raw); target != "" && !isURL(target) {
			out = append(out, Reference{
				Link:     target,
				Original: line[start:end],
				Kind:     kind,
				Line:     lineNum,
				Locator:  TextLocator(base+start, base+end),
			})
		}
		pos = end
	}
	return out
}

// markdownTarget strips angle brackets, link titles and percent-encoding
// from a markdown link destination.
func markdownTarget(raw string) string {
	if strings.HasPrefix(raw, "<") {
		if i := strings.Index(raw, ">"); i > 0 {
			raw = raw[1:i]
		}
	} else if i := strings.IndexAny(raw, " \t"); i >= 0 {
		raw = raw[:i]
	}
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	return strings.TrimSpace(raw)
}

// frontmatterEnd returns the line index of the closing "---" of frontmatter.
// Returns -1 if no valid frontmatter is found.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return i
		}
	}
	return -1
}

// parseFrontmatter extracts wikilinks held in frontmatter property values.
// lines include the opening and closing "---".
func parseFrontmatter(lines []string) []Reference {
	if len(lines) < 3 {
		return nil
	}
	yamlContent := strings.Join(lines[1:len(lines)-1], "")

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil
	}

	fm := frontmatter{lines: lines, offsets: make([]int, len(lines))}
	for i := 1; i < len(lines); i++ {
		fm.offsets[i] = fm.offsets[i-1] + len(lines[i-1])
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		fm.walk(mapping.Content[i].Value, mapping.Content[i+1])
	}
	return fm.out
}

type frontmatter struct {
	lines   []string
	offsets []int
	out     []Reference
}

func (fm *frontmatter) walk(key string, n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		fm.scalar(key, n)
	case yaml.SequenceNode:
		for i, item := range n.Content {
			fm.walk(key+"."+strconv.Itoa(i), item)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			fm.walk(key+"."+n.Content[i].Value, n.Content[i+1])
		}
	}
}

// scalar records the wikilinks inside one property value. yaml line L maps
// to lines[L] because lines[0] is the opening "---".
func (fm *frontmatter) scalar(key string, n *yaml.Node) {
	if !strings.Contains(n.Value, "[[") || n.Line <= 0 || n.Line >= len(fm.lines) {
		return
	}
	raw := fm.lines[n.Line]
	from := min(max(n.Column-1, 0), len(raw))

	value := n.Value
	for {
		open := strings.Index(value, "[[")
		if open == -1 {
			return
		}
		closeIdx := strings.Index(value[open+2:], "]]")
		if closeIdx == -1 {
			return
		}
		original := value[open : open+2+closeIdx+2]
		value = value[open+len(original):]

		link := strings.TrimSpace(splitAlias(original[2 : len(original)-2]))
		if link == "" {
			continue
		}
		start := fm.offsets[n.Line] + from
		if i := strings.Index(raw[from:], original); i >= 0 {
			start += i
			from += i + len(original)
		}
		loc := TextLocator(start, start+len(original))
		loc.Key = key
		fm.out = append(fm.out, Reference{
			Link:     link,
			Original: original,
			Kind:     KindFrontmatter,
			Line:     n.Line + 1,
			Locator:  loc,
		})
	}
}

func splitAlias(input string) string {
	if idx := strings.Index(input, "|"); idx != -1 {
		return input[:idx]
	}
	return input
}

// extractSubpath splits "target#subpath" into (target, "#subpath").
// Returns (input, "") if no subpath.
func extractSubpath(input string) (string, string) {
	if idx := strings.Index(input, "#"); idx != -1 {
		return input[:idx], input[idx:]
	}
	return input, ""
}

func normalizeBasename(input string) string {
	lower := strings.ToLower(input)
	if strings.HasSuffix(lower, ".md") && len(input) >= 3 {
		return input[:len(input)-3]
	}
	return input
}

func isBasenameLink(target string) bool {
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") || strings.HasPrefix(target, "/") {
		return false
	}
	return !strings.Contains(target, "/")
}

func isRelativePath(target string) bool {
	return strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../")
}

func isURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.Contains(lower, "://") || strings.HasPrefix(lower, "mailto:")
}
