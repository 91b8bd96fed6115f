package core

import (
	"context"
	"log/slog"
)

// Scanner answers backlink queries by reading every document on each call.
// It is the unindexed entry point the service's façade replaces, and the
// reference the diagnostics compare the graph against.
type Scanner struct {
	Store     DocumentStore
	Resolver  Resolver
	Extractor Extractor
	Compare   DocumentComparer
	Config    Config
	Logger    *slog.Logger
}

// Backlinks scans the vault for references resolving to path.
func (s *Scanner) Backlinks(ctx context.Context, path string) ([]Backlink, error) {
	index, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	bucket := index[NormalizePath(path)]
	out := make([]Backlink, 0, len(bucket))
	for source, refs := range bucket {
		out = append(out, Backlink{Source: source, References: refs})
	}
	compare := s.Compare
	if compare == nil {
		compare = ComparerFor(SortAlphabetical)
	}
	sortBacklinks(out, compare, s.Store.Stat)
	return out, nil
}

// Index builds the full backward index (target -> source -> references) in
// one pass over the store.
func (s *Scanner) Index(ctx context.Context) (map[string]map[string][]Reference, error) {
	docs, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	extractor := s.Extractor
	if extractor == nil {
		extractor = MarkdownExtractor{}
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	index := make(map[string]map[string][]Reference)
	for _, d := range docs {
		if !isIndexable(d.Path) || s.Config.Excluded(d.Path) {
			continue
		}
		if isCanvas(d.Path) && !s.Config.CanvasEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.Store.Read(ctx, d.Path)
		if err != nil {
			log.Debug("scan skipped document", "path", d.Path, "err", err)
			continue
		}
		var refs []Reference
		if isCanvas(d.Path) {
			if refs, err = ParseCanvas(doc.Content, extractor); err != nil {
				log.Debug("scan skipped malformed canvas", "path", d.Path, "err", err)
				continue
			}
		} else {
			refs = extractor.Extract(doc.Content)
		}
		for _, ref := range normalizeReferences(refs) {
			target, ok := s.Resolver.Resolve(ref.Link, d.Path)
			if !ok {
				continue
			}
			ref.Source, ref.Target = d.Path, target
			bucket, ok := index[target]
			if !ok {
				bucket = make(map[string][]Reference)
				index[target] = bucket
			}
			bucket[d.Path] = append(bucket[d.Path], ref)
		}
	}
	return index, nil
}
