package core

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the bidirectional link index.
//
// links maps a source to the set of targets it resolves to; backlinks maps a
// target to the references each source holds to it. The two always mirror
// each other: S is in links and T in links[S] exactly when backlinks[T][S]
// is non-empty.
type Graph struct {
	mu        sync.RWMutex
	resolver  Resolver
	compare   DocumentComparer
	stat      func(path string) (DocumentInfo, error)
	links     map[string]map[string]struct{}
	backlinks map[string]map[string][]Reference

	// Unresolved links, keyed by the basename they wait on, so that a later
	// create or rename can re-resolve their sources.
	dangling         map[string]map[string]struct{}
	danglingBySource map[string][]Reference
}

// GraphOptions configures a Graph.
type GraphOptions struct {
	Resolver Resolver
	Compare  DocumentComparer                        // nil = natural alphabetical
	Stat     func(path string) (DocumentInfo, error) // nil = path-derived infos only
}

// NewGraph creates an empty graph.
func NewGraph(opts GraphOptions) *Graph {
	g := &Graph{
		resolver: opts.Resolver,
		compare:  opts.Compare,
		stat:     opts.Stat,
	}
	if g.compare == nil {
		g.compare = ComparerFor(SortAlphabetical)
	}
	g.resetLocked()
	return g
}

func (g *Graph) resetLocked() {
	g.links = make(map[string]map[string]struct{})
	g.backlinks = make(map[string]map[string][]Reference)
	g.dangling = make(map[string]map[string]struct{})
	g.danglingBySource = make(map[string][]Reference)
}

// Reset discards all state.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

// SetComparer replaces the source ordering used by Backlinks.
func (g *Graph) SetComparer(compare DocumentComparer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compare = compare
}

// Refresh replaces every outbound edge of source with the resolvable
// references in refs. It returns the number of resolved references kept.
// Refreshing twice with the same input leaves the same state.
//
// References are resolved under the write lock so that Dangling never
// observes a link that failed to resolve but is not yet recorded.
func (g *Graph) Refresh(source string, refs []Reference) int {
	refs = normalizeReferences(refs)

	g.mu.Lock()
	defer g.mu.Unlock()
	resolved := make([]Reference, 0, len(refs))
	var unresolved []Reference
	for _, ref := range refs {
		ref.Source = source
		target, ok := g.resolver.Resolve(ref.Link, source)
		if !ok {
			unresolved = append(unresolved, ref)
			continue
		}
		ref.Target = target
		resolved = append(resolved, ref)
	}
	g.unlinkLocked(source)
	for _, ref := range resolved {
		targets, ok := g.links[source]
		if !ok {
			targets = make(map[string]struct{})
			g.links[source] = targets
		}
		targets[ref.Target] = struct{}{}

		bucket, ok := g.backlinks[ref.Target]
		if !ok {
			bucket = make(map[string][]Reference)
			g.backlinks[ref.Target] = bucket
		}
		bucket[source] = append(bucket[source], ref)
	}
	for _, ref := range unresolved {
		g.addDanglingLocked(source, ref)
	}
	return len(resolved)
}

// Remove drops path from the index: its outbound edges, its own bucket of
// inbound references, and the forward entries of every source in that bucket.
// Those sources' links are remembered as dangling.
func (g *Graph) Remove(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlinkLocked(path)
	for source, refs := range g.backlinks[path] {
		g.dropTargetLocked(source, path)
		for _, ref := range refs {
			ref.Target = ""
			g.addDanglingLocked(source, ref)
		}
	}
	delete(g.backlinks, path)
}

// unlinkLocked removes every outbound edge and dangling link of source.
func (g *Graph) unlinkLocked(source string) {
	for target := range g.links[source] {
		bucket := g.backlinks[target]
		delete(bucket, source)
		if len(bucket) == 0 {
			delete(g.backlinks, target)
		}
	}
	delete(g.links, source)

	for _, ref := range g.danglingBySource[source] {
		key := danglingKey(ref.Link)
		sources := g.dangling[key]
		delete(sources, source)
		if len(sources) == 0 {
			delete(g.dangling, key)
		}
	}
	delete(g.danglingBySource, source)
}

func (g *Graph) dropTargetLocked(source, target string) {
	targets := g.links[source]
	delete(targets, target)
	if len(targets) == 0 {
		delete(g.links, source)
	}
}

func (g *Graph) addDanglingLocked(source string, ref Reference) {
	key := danglingKey(ref.Link)
	if key == "" {
		return
	}
	sources, ok := g.dangling[key]
	if !ok {
		sources = make(map[string]struct{})
		g.dangling[key] = sources
	}
	sources[source] = struct{}{}
	g.danglingBySource[source] = append(g.danglingBySource[source], ref)
}

// Dangling returns the sources holding unresolved links that wait on any of
// the given basename keys, sorted.
func (g *Graph) Dangling(keys ...string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, key := range keys {
		for source := range g.dangling[key] {
			seen[source] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Unresolved returns every unresolved reference, sorted by source.
func (g *Graph) Unresolved() []Reference {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sources := make([]string, 0, len(g.danglingBySource))
	for s := range g.danglingBySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	var out []Reference
	for _, s := range sources {
		out = append(out, g.danglingBySource[s]...)
	}
	return out
}

// Backlinks returns the sources referencing target with their references.
// References are ordered by locator; sources by the configured comparer.
func (g *Graph) Backlinks(target string) []Backlink {
	g.mu.RLock()
	bucket := g.backlinks[target]
	out := make([]Backlink, 0, len(bucket))
	for source, refs := range bucket {
		out = append(out, Backlink{Source: source, References: append([]Reference(nil), refs...)})
	}
	compare := g.compare
	g.mu.RUnlock()

	sortBacklinks(out, compare, g.stat)
	return out
}

// Sources returns the sources currently linking to target, sorted.
func (g *Graph) Sources(target string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.backlinks[target]))
	for source := range g.backlinks[target] {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// Targets returns the targets source currently links to, sorted.
func (g *Graph) Targets(source string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.links[source])
}

func sortBacklinks(out []Backlink, compare DocumentComparer, stat func(string) (DocumentInfo, error)) {
	infos := make(map[string]DocumentInfo, len(out))
	for _, b := range out {
		info := InfoFromPath(b.Source)
		if stat != nil {
			if got, err := stat(b.Source); err == nil {
				info = got
			}
		}
		infos[b.Source] = info
		sortReferences(b.References)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := compare(infos[out[i].Source], infos[out[j].Source]); c != 0 {
			return c < 0
		}
		return out[i].Source < out[j].Source
	})
}

// Check verifies that the forward and backward indexes mirror each other.
func (g *Graph) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for source, targets := range g.links {
		if len(targets) == 0 {
			return fmt.Errorf("%w: empty forward entry for %s", ErrInvariant, source)
		}
		for target := range targets {
			if len(g.backlinks[target][source]) == 0 {
				return fmt.Errorf("%w: %s -> %s has no backward references", ErrInvariant, source, target)
			}
		}
	}
	for target, bucket := range g.backlinks {
		for source, refs := range bucket {
			if len(refs) == 0 {
				return fmt.Errorf("%w: empty backward entry %s <- %s", ErrInvariant, target, source)
			}
			if _, ok := g.links[source][target]; !ok {
				return fmt.Errorf("%w: %s <- %s missing from forward index", ErrInvariant, target, source)
			}
		}
	}
	return nil
}

// GraphStats summarizes the index.
type GraphStats struct {
	Sources    int
	Targets    int
	Edges      int
	References int
	Dangling   int
}

// Stats returns the current index counts.
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st := GraphStats{Sources: len(g.links), Targets: len(g.backlinks)}
	for _, targets := range g.links {
		st.Edges += len(targets)
	}
	for _, bucket := range g.backlinks {
		for _, refs := range bucket {
			st.References += len(refs)
		}
	}
	for _, refs := range g.danglingBySource {
		st.Dangling += len(refs)
	}
	return st
}

// Snapshot is a deep copy of the index with sorted keys and references.
type Snapshot struct {
	Links     map[string][]string
	Backlinks map[string]map[string][]Reference
}

// Snapshot copies the current index.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	snap := Snapshot{
		Links:     make(map[string][]string, len(g.links)),
		Backlinks: make(map[string]map[string][]Reference, len(g.backlinks)),
	}
	for source, targets := range g.links {
		snap.Links[source] = sortedKeys(targets)
	}
	for target, bucket := range g.backlinks {
		cp := make(map[string][]Reference, len(bucket))
		for source, refs := range bucket {
			refs = append([]Reference(nil), refs...)
			sortReferences(refs)
			cp[source] = refs
		}
		snap.Backlinks[target] = cp
	}
	return snap
}

// Edges calls fn for every resolved reference ordered by target, then source,
// then locator. Iteration stops when fn returns false.
func (g *Graph) Edges(fn func(ref Reference) bool) {
	snap := g.Snapshot()
	targets := make([]string, 0, len(snap.Backlinks))
	for t := range snap.Backlinks {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		bucket := snap.Backlinks[t]
		sources := make([]string, 0, len(bucket))
		for s := range bucket {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			for _, ref := range bucket[s] {
				if !fn(ref) {
					return
				}
			}
		}
	}
}

// normalizeReferences orders refs by locator and drops duplicates that
// address the same location, keeping the first.
func normalizeReferences(refs []Reference) []Reference {
	out := append([]Reference(nil), refs...)
	sortReferences(out)
	kept := out[:0]
	for _, ref := range out {
		if len(kept) > 0 && sameLocation(kept[len(kept)-1].Locator, ref.Locator) {
			continue
		}
		kept = append(kept, ref)
	}
	return kept
}

func sortReferences(refs []Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return CompareLocators(refs[i].Locator, refs[j].Locator) < 0
	})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
