package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DataDirName is the directory the tool keeps its own files in.
const DataDirName = ".backlinks"

// Vault is a DocumentStore over a directory tree. Hidden files and
// directories are skipped.
type Vault struct {
	root string
}

// NewVault opens the vault rooted at root.
func NewVault(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("vault is not a directory: %s", root)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string { return v.root }

// Rel converts an absolute filesystem path into a vault-relative path.
// It reports false for paths outside the vault or inside hidden entries.
func (v *Vault) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", false
	}
	rel = NormalizePath(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}

// abs resolves a vault-relative path, refusing paths that escape the root.
func (v *Vault) abs(p string) (string, error) {
	p = NormalizePath(p)
	if p == "" || p == ".." || strings.HasPrefix(p, "../") || filepath.IsAbs(p) {
		return "", fmt.Errorf("path escapes vault: %s", p)
	}
	return filepath.Join(v.root, filepath.FromSlash(p)), nil
}

// List returns every non-hidden file, sorted by path.
func (v *Vault) List(ctx context.Context) ([]DocumentInfo, error) {
	var out []DocumentInfo
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == v.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, ok := v.Rel(p)
		if !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, v.info(rel, p, fi))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the content of the document at p.
func (v *Vault) Read(ctx context.Context, p string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	info, err := v.Stat(p)
	if err != nil {
		return Document{}, err
	}
	abs, _ := v.abs(info.Path)
	content, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrMissingDocument, info.Path)
		}
		return Document{}, err
	}
	return Document{Info: info, Content: content}, nil
}

// Stat returns the info of the document at p.
func (v *Vault) Stat(p string) (DocumentInfo, error) {
	abs, err := v.abs(p)
	if err != nil {
		return DocumentInfo{}, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DocumentInfo{}, fmt.Errorf("%w: %s", ErrMissingDocument, p)
		}
		return DocumentInfo{}, err
	}
	if fi.IsDir() {
		return DocumentInfo{}, fmt.Errorf("%w: %s is a directory", ErrMissingDocument, p)
	}
	return v.info(NormalizePath(p), abs, fi), nil
}

func (v *Vault) info(rel, abs string, fi fs.FileInfo) DocumentInfo {
	info := InfoFromPath(rel)
	info.Size = fi.Size()
	info.MTime = fi.ModTime()
	info.CTime = birthTime(abs, fi)
	return info
}
