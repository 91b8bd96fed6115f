package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
)

// CanvasState is the lifecycle state of one container document.
type CanvasState int

const (
	CanvasUnindexed CanvasState = iota
	CanvasIndexed
)

func (s CanvasState) String() string {
	if s == CanvasIndexed {
		return "indexed"
	}
	return "unindexed"
}

// CanvasAdapter synthesizes reference metadata for .canvas documents and
// keeps it in a side cache keyed by path.
type CanvasAdapter struct {
	mu        sync.RWMutex
	store     DocumentStore
	extractor Extractor
	log       *slog.Logger
	enabled   bool
	entries   map[string]Metadata
}

// NewCanvasAdapter creates an adapter reading through store. Links inside
// text nodes are found with extractor.
func NewCanvasAdapter(store DocumentStore, extractor Extractor, log *slog.Logger, enabled bool) *CanvasAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &CanvasAdapter{
		store:     store,
		extractor: extractor,
		log:       log,
		enabled:   enabled,
		entries:   make(map[string]Metadata),
	}
}

// Handles reports whether path is a container document.
func (a *CanvasAdapter) Handles(path string) bool { return isCanvas(path) }

// Enabled reports whether container indexing is on.
func (a *CanvasAdapter) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEnabled toggles container indexing. Disabling drops every cache entry.
func (a *CanvasAdapter) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	if !enabled {
		a.entries = make(map[string]Metadata)
	}
}

// State returns the cache state of path.
func (a *CanvasAdapter) State(path string) CanvasState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.entries[path]; ok {
		return CanvasIndexed
	}
	return CanvasUnindexed
}

// Metadata returns the cached entry for path.
func (a *CanvasAdapter) Metadata(path string) (Metadata, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.entries[path]
	return m, ok
}

// Index reads and parses path, replacing its cache entry. Malformed content
// is cached as an empty reference list and logged.
func (a *CanvasAdapter) Index(ctx context.Context, path string) error {
	if !a.Enabled() {
		return nil
	}
	doc, err := a.store.Read(ctx, path)
	if err != nil {
		return err
	}
	refs, err := ParseCanvas(doc.Content, a.extractor)
	if err != nil {
		canvasParseFailures.Inc()
		a.log.Warn("canvas parse failed", "path", path, "err", err)
		refs = nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return nil
	}
	a.entries[path] = Metadata{Path: path, References: refs, MTime: doc.Info.MTime}
	return nil
}

// Forget drops the entry of a deleted document.
func (a *CanvasAdapter) Forget(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, path)
}

// Rename moves an entry to a new key without re-parsing.
func (a *CanvasAdapter) Rename(oldPath, newPath string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.entries[oldPath]
	if !ok {
		return
	}
	delete(a.entries, oldPath)
	if isCanvas(newPath) {
		m.Path = newPath
		a.entries[newPath] = m
	}
}

// Reset drops every entry.
func (a *CanvasAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]Metadata)
}

// ParseCanvas returns the references held by a canvas document. File nodes
// yield one reference located at the node; text nodes yield one reference per
// link found by extractor, located at (node, link index).
func ParseCanvas(content []byte, extractor Extractor) ([]Reference, error) {
	if !json.Valid(content) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrAdapterParse)
	}
	var refs []Reference
	index := -1
	_, err := jsonparser.ArrayEach(content, func(node []byte, dataType jsonparser.ValueType, _ int, _ error) {
		index++
		if dataType != jsonparser.Object {
			return
		}
		kind, _ := jsonparser.GetString(node, "type")
		switch kind {
		case "file":
			file, err := jsonparser.GetString(node, "file")
			if err != nil || file == "" {
				return
			}
			refs = append(refs, Reference{
				Link:     file,
				Original: file,
				Kind:     KindCanvasFile,
				Locator:  NodeLocator(index),
			})
		case "text":
			text, err := jsonparser.GetString(node, "text")
			if err != nil || text == "" {
				return
			}
			for j, ref := range extractor.Extract([]byte(text)) {
				ref.Kind = KindCanvasText
				ref.Locator = NestedLocator(index, j, ref.Locator.Start, ref.Locator.End)
				refs = append(refs, ref)
			}
		}
	}, "nodes")
	if err == jsonparser.KeyPathNotFoundError {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterParse, err)
	}
	return refs, nil
}
