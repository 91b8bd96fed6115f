package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// DiagnoseOptions controls which fields to return.
type DiagnoseOptions struct {
	Fields []string // nil/empty = all
}

// DiagnoseFields lists the valid field names.
var DiagnoseFields = []string{"invariant", "basename_conflicts", "dangling", "mismatches"}

// BasenameConflict represents a group of notes with the same case-insensitive basename.
type BasenameConflict struct {
	Name  string   // display name (from the first path in sorted order)
	Paths []string // vault-relative paths (sorted)
}

// DanglingLink is a link that resolves to no document.
type DanglingLink struct {
	Source string
	Link   string
	Line   int
}

// DiagnoseResult contains diagnostic information about the link graph.
type DiagnoseResult struct {
	Invariant         string             // empty when the indexes mirror each other
	BasenameConflicts []BasenameConflict // sorted by name
	Dangling          []DanglingLink     // sorted by source
	Mismatches        []string           // targets whose graph bucket differs from a full scan
}

// Diagnose checks the graph invariant and compares the graph with a full
// scan of the vault.
func Diagnose(ctx context.Context, svc *Service, scanner *Scanner, opts DiagnoseOptions) (*DiagnoseResult, error) {
	for _, f := range opts.Fields {
		if !slices.Contains(DiagnoseFields, f) {
			return nil, fmt.Errorf("unknown diagnose field: %s", f)
		}
	}
	result := &DiagnoseResult{}

	if isFieldActive("invariant", opts.Fields) {
		if err := svc.graph.Check(); err != nil {
			result.Invariant = err.Error()
		}
	}

	if isFieldActive("basename_conflicts", opts.Fields) {
		if r, ok := svc.resolver.(*VaultResolver); ok {
			result.BasenameConflicts = r.Conflicts()
		}
	}

	if isFieldActive("dangling", opts.Fields) {
		for _, ref := range svc.graph.Unresolved() {
			result.Dangling = append(result.Dangling, DanglingLink{Source: ref.Source, Link: ref.Link, Line: ref.Line})
		}
	}

	if isFieldActive("mismatches", opts.Fields) && scanner != nil {
		scanned, err := scanner.Index(ctx)
		if err != nil {
			return nil, err
		}
		result.Mismatches = compareIndexes(svc.graph.Snapshot().Backlinks, scanned)
	}
	return result, nil
}

// compareIndexes returns the targets whose source sets or reference counts
// differ between two backward indexes, sorted.
func compareIndexes(a, b map[string]map[string][]Reference) []string {
	diff := make(map[string]struct{})
	check := func(x, y map[string]map[string][]Reference) {
		for target, bucket := range x {
			other := y[target]
			if len(other) != len(bucket) {
				diff[target] = struct{}{}
				continue
			}
			for source, refs := range bucket {
				if len(other[source]) != len(refs) {
					diff[target] = struct{}{}
					break
				}
			}
		}
	}
	check(a, b)
	check(b, a)
	out := make([]string, 0, len(diff))
	for t := range diff {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
