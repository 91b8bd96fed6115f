package core

import (
	"cmp"
	"context"
	"fmt"
	"time"
)

// Link kinds recorded on a Reference.
const (
	KindWikilink    = "wikilink"
	KindEmbed       = "embed"
	KindMarkdown    = "markdown"
	KindFrontmatter = "frontmatter"
	KindCanvasFile  = "canvas-file"
	KindCanvasText  = "canvas-text"
)

// NoNode and NoLink mark the container fields of a prose Locator.
const (
	NoNode = -1
	NoLink = -1
)

// Locator identifies where a reference occurs inside its source document.
//
// Prose references use the byte range [Start, End). Container references use
// Node (and Link for links nested in a text node); Start/End then address the
// link inside the node text. Frontmatter references also carry the property
// key path in Key.
type Locator struct {
	Start int
	End   int
	Node  int
	Link  int
	Key   string
}

// TextLocator returns a prose locator for the byte range [start, end).
func TextLocator(start, end int) Locator {
	return Locator{Start: start, End: end, Node: NoNode, Link: NoLink}
}

// NodeLocator returns the locator of a container file-reference node.
func NodeLocator(node int) Locator {
	return Locator{Node: node, Link: NoLink}
}

// NestedLocator returns the locator of the link-th link inside a container text node.
func NestedLocator(node, link, start, end int) Locator {
	return Locator{Start: start, End: end, Node: node, Link: link}
}

// IsNode reports whether the locator addresses a container node.
func (l Locator) IsNode() bool { return l.Node >= 0 }

// String returns the canonical key form: "nodes.3.file", "nodes.3.text.1",
// the frontmatter key path, or "start-end" for prose.
func (l Locator) String() string {
	switch {
	case l.IsNode() && l.Link == NoLink:
		return fmt.Sprintf("nodes.%d.file", l.Node)
	case l.IsNode():
		return fmt.Sprintf("nodes.%d.text.%d", l.Node, l.Link)
	case l.Key != "":
		return l.Key
	default:
		return fmt.Sprintf("%d-%d", l.Start, l.End)
	}
}

// CompareLocators orders prose locators by offset and container locators by
// (node, link). Prose sorts before container locators.
func CompareLocators(a, b Locator) int {
	if a.IsNode() != b.IsNode() {
		if a.IsNode() {
			return 1
		}
		return -1
	}
	if a.IsNode() {
		if c := cmp.Compare(a.Node, b.Node); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Link, b.Link); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// sameLocation reports whether two locators address the same link occurrence.
// Prose locators are compared by start offset only.
func sameLocation(a, b Locator) bool {
	if a.IsNode() || b.IsNode() {
		return a.Node == b.Node && a.Link == b.Link
	}
	return a.Start == b.Start
}

// Reference is one occurrence of a link or embed inside a document.
type Reference struct {
	Source   string  // vault-relative path of the linking document
	Link     string  // link target as written, e.g. "sub/B#Heading"
	Original string  // full link text, e.g. "[[sub/B#Heading|B]]"
	Kind     string  // one of the Kind constants
	Target   string  // resolved vault-relative path, empty until resolved
	Line     int     // 1-based line in the source, 0 if not applicable
	Locator  Locator // position of the occurrence
}

// Backlink groups the references one source holds to a target.
type Backlink struct {
	Source     string
	References []Reference
}

// DocumentInfo describes a document in the vault.
type DocumentInfo struct {
	Path  string // vault-relative, forward slashes
	Name  string // display name: basename without extension
	Ext   string // lowercase extension including the dot
	Size  int64
	CTime time.Time
	MTime time.Time
}

// Document is a document together with its content.
type Document struct {
	Info    DocumentInfo
	Content []byte
}

// Metadata is the reference list extracted (or synthesized) for a document.
type Metadata struct {
	Path       string
	References []Reference
	MTime      time.Time // modification time of the content the references came from
}

// EventOp is the kind of a mutation notification.
type EventOp int

const (
	EventCreated EventOp = iota
	EventModified
	EventRenamed
	EventDeleted
)

func (op EventOp) String() string {
	switch op {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventRenamed:
		return "renamed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a mutation notification keyed by path. OldPath is set for renames.
type Event struct {
	Op      EventOp
	Path    string
	OldPath string
}

// Extractor returns the ordered outbound references found in document content.
type Extractor interface {
	Extract(content []byte) []Reference
}

// Resolver resolves a raw link written in source to a document path.
type Resolver interface {
	Resolve(link, source string) (string, bool)
}

// DocumentStore gives access to the documents of a vault.
type DocumentStore interface {
	// List returns every document sorted by path.
	List(ctx context.Context) ([]DocumentInfo, error)
	// Read returns the document content; ErrMissingDocument if it is gone.
	Read(ctx context.Context, path string) (Document, error)
	// Stat returns the document info; ErrMissingDocument if it is gone.
	Stat(path string) (DocumentInfo, error)
}

// EventSource delivers mutation notifications to subscribers.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Backlinker is the host's backlink query entry point.
type Backlinker interface {
	Backlinks(ctx context.Context, path string) ([]Backlink, error)
}
