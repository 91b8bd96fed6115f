package core

import (
	"path"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

const defaultResolverCacheSize = 4096

// PathIndex is a Resolver that tracks the set of existing document paths.
type PathIndex interface {
	Resolver
	Add(p string)
	Remove(p string)
	Reset(paths []string)
	Has(p string) bool
	Under(dir string) []string
}

// VaultResolver resolves links against the current set of vault paths.
//
// Lookup keys are lowercase and NFC-normalized. Results are memoized per
// (source directory, link) and the memo is purged whenever the path set changes.
type VaultResolver struct {
	mu     sync.RWMutex
	paths  map[string]string   // lower path, and lower path without .md -> path
	byName map[string][]string // lower name key -> sorted paths
	all    map[string]struct{}
	memo   *lru.Cache[string, string]
}

// NewVaultResolver creates a resolver with an LRU memo of the given size.
func NewVaultResolver(cacheSize int) *VaultResolver {
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	memo, err := lru.New[string, string](cacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &VaultResolver{
		paths:  make(map[string]string),
		byName: make(map[string][]string),
		all:    make(map[string]struct{}),
		memo:   memo,
	}
}

// Reset replaces the whole path set.
func (r *VaultResolver) Reset(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = make(map[string]string, len(paths)*2)
	r.byName = make(map[string][]string, len(paths))
	r.all = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		r.addLocked(NormalizePath(p))
	}
	r.memo.Purge()
}

// Add registers a new path.
func (r *VaultResolver) Add(p string) {
	p = NormalizePath(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.all[p]; ok {
		return
	}
	r.addLocked(p)
	r.memo.Purge()
}

// Remove forgets a path.
func (r *VaultResolver) Remove(p string) {
	p = NormalizePath(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.all[p]; !ok {
		return
	}
	delete(r.all, p)
	for _, k := range pathKeys(p) {
		if r.paths[k] == p {
			delete(r.paths, k)
		}
	}
	for _, k := range nameKeys(p) {
		names := r.byName[k]
		for i, q := range names {
			if q == p {
				names = append(names[:i:i], names[i+1:]...)
				break
			}
		}
		if len(names) == 0 {
			delete(r.byName, k)
		} else {
			r.byName[k] = names
		}
	}
	r.memo.Purge()
}

func (r *VaultResolver) addLocked(p string) {
	r.all[p] = struct{}{}
	for _, k := range pathKeys(p) {
		if _, taken := r.paths[k]; !taken {
			r.paths[k] = p
		}
	}
	for _, k := range nameKeys(p) {
		names := append(r.byName[k], p)
		sort.Strings(names)
		r.byName[k] = names
	}
}

// Has reports whether p is a known path.
func (r *VaultResolver) Has(p string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.all[NormalizePath(p)]
	return ok
}

// Under returns the known paths inside directory dir, sorted.
func (r *VaultResolver) Under(dir string) []string {
	dir = NormalizePath(dir)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for p := range r.all {
		if hasPathPrefix(p, dir) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Conflicts returns the basenames shared by more than one markdown document.
func (r *VaultResolver) Conflicts() []BasenameConflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BasenameConflict
	for key, paths := range r.byName {
		if strings.HasSuffix(key, ".md") || len(paths) < 2 || extension(paths[0]) != ".md" {
			continue
		}
		out = append(out, BasenameConflict{Name: basename(paths[0]), Paths: append([]string(nil), paths...)})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Resolve resolves link as written in source. An empty link path
// ("[[#Heading]]") resolves to source itself.
func (r *VaultResolver) Resolve(link, source string) (string, bool) {
	target := linkPath(link)
	if target == "" {
		return source, source != ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key := parentDir(source) + "\x00" + target
	if p, ok := r.memo.Get(key); ok {
		return p, p != ""
	}
	p, _ := r.resolveLocked(target, source)
	r.memo.Add(key, p)
	return p, p != ""
}

func (r *VaultResolver) resolveLocked(target, source string) (string, bool) {
	// Relative path resolution: ./Target or ../Root
	if isRelativePath(target) {
		if escapesVault(source, target) {
			return "", false
		}
		return r.lookupPath(path.Join(parentDir(source), target))
	}

	if !isBasenameLink(target) && pathEscapesVault(target) {
		return "", false
	}

	// Absolute path (/ prefix): /sub/B.md → sub/B.md
	if strings.HasPrefix(target, "/") {
		return r.lookupPath(strings.TrimPrefix(target, "/"))
	}

	if !isBasenameLink(target) {
		if p, ok := r.lookupPath(target); ok {
			return p, true
		}
		return r.lookupSuffix(target, source)
	}

	candidates := r.byName[strings.ToLower(target)]
	return pickCandidate(candidates, source)
}

func (r *VaultResolver) lookupPath(p string) (string, bool) {
	lower := strings.ToLower(NormalizePath(p))
	if got, ok := r.paths[lower]; ok {
		return got, true
	}
	return "", false
}

// lookupSuffix matches partial paths such as "sub/B" against "notes/sub/B.md".
func (r *VaultResolver) lookupSuffix(target, source string) (string, bool) {
	lower := strings.ToLower(NormalizePath(target))
	var matches []string
	for _, p := range r.byName[strings.ToLower(path.Base(lower))] {
		for _, k := range pathKeys(p) {
			if strings.HasSuffix(k, "/"+lower) {
				matches = append(matches, p)
				break
			}
		}
	}
	return pickCandidate(matches, source)
}

// pickCandidate breaks basename ties: the source's own directory first,
// then the vault root, then the lexicographically smallest path.
func pickCandidate(candidates []string, source string) (string, bool) {
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}
	dir := parentDir(source)
	for _, c := range candidates {
		if parentDir(c) == dir {
			return c, true
		}
	}
	for _, c := range candidates {
		if isRootFile(c) {
			return c, true
		}
	}
	return candidates[0], true
}

// pathKeys returns the lowercase full-path keys of p.
func pathKeys(p string) []string {
	lower := strings.ToLower(foldName(p))
	if extension(p) == ".md" {
		return []string{lower, strings.TrimSuffix(lower, ".md")}
	}
	return []string{lower}
}

// linkPath reduces a raw link to the path part used for resolution.
func linkPath(link string) string {
	target, _ := extractSubpath(foldName(link))
	return strings.TrimSpace(target)
}

// foldName replaces no-break spaces and applies NFC so differently encoded
// names compare equal.
func foldName(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return norm.NFC.String(s)
}
