package core

import (
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath cleans a vault-relative path: forward slashes, no leading "./".
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	return strings.TrimPrefix(clean, "./")
}

// basename returns the file name without directory and extension.
func basename(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func extension(p string) string {
	return strings.ToLower(path.Ext(p))
}

// nameKeys returns the lowercase names a link can use to reach p by basename:
// the file name with extension, plus the bare basename for markdown documents.
func nameKeys(p string) []string {
	full := strings.ToLower(foldName(path.Base(p)))
	if extension(p) == ".md" {
		return []string{strings.TrimSuffix(full, ".md"), full}
	}
	return []string{full}
}

// danglingKey returns the basename key an unresolved link waits on.
func danglingKey(link string) string {
	target := linkPath(link)
	if target == "" {
		return ""
	}
	return strings.ToLower(normalizeBasename(path.Base(target)))
}

// isRootFile returns true if the path has no directory component (root-level file).
func isRootFile(p string) bool {
	return !strings.Contains(p, "/")
}

func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// isIndexable reports whether p holds outbound links worth extracting.
func isIndexable(p string) bool {
	switch extension(p) {
	case ".md", ".canvas":
		return true
	}
	return false
}

func isCanvas(p string) bool {
	return extension(p) == ".canvas"
}

// escapesVault reports whether a relative target climbs above the vault root.
func escapesVault(fromPath, target string) bool {
	joined := path.Clean(path.Join(path.Dir(fromPath), target))
	return joined == ".." || strings.HasPrefix(joined, "../")
}

// pathEscapesVault reports whether a vault-absolute target climbs above the root.
func pathEscapesVault(target string) bool {
	joined := path.Clean(strings.TrimPrefix(target, "/"))
	return joined == ".." || strings.HasPrefix(joined, "../")
}

// hasPathPrefix reports whether p lies inside directory dir.
func hasPathPrefix(p, dir string) bool {
	return dir == "" || strings.HasPrefix(p, dir+"/")
}

// InfoFromPath returns the path-derived part of a DocumentInfo.
func InfoFromPath(p string) DocumentInfo {
	return DocumentInfo{Path: p, Name: basename(p), Ext: extension(p)}
}
