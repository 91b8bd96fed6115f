package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/ryotapoi/backlinks/internal/core"
)

// parseFields splits a comma-separated field string into a slice.
// Returns nil for empty input.
func parseFields(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateFormat checks that format is "json" or "text".
func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %q (must be json or text)", format)
	}
	return nil
}

// validateFields checks that all fields are in the valid set.
// name is used in the error message (e.g. "stats", "diagnose").
func validateFields(fields, valid []string, name string) error {
	for _, f := range fields {
		if !slices.Contains(valid, f) {
			return fmt.Errorf("unknown %s field: %s", name, f)
		}
	}
	return nil
}

// fieldSet returns a set of fields to show. If fields is nil/empty, all valid fields are shown.
func fieldSet(fields, valid []string) map[string]bool {
	if len(fields) == 0 {
		fields = valid
	}
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Query output ---

type queryJSONOutput struct {
	Target    string         `json:"target"`
	Backlinks []jsonBacklink `json:"backlinks"`
}

type jsonBacklink struct {
	Source     string          `json:"source"`
	References []jsonReference `json:"references"`
}

type jsonReference struct {
	Link      string `json:"link"`
	Original  string `json:"original"`
	Kind      string `json:"kind"`
	Line      int    `json:"line,omitempty"`
	Locator   string `json:"locator"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Node      *int   `json:"node,omitempty"`
	LinkIndex *int   `json:"link_index,omitempty"`
}

func toJSONReference(r core.Reference) jsonReference {
	jr := jsonReference{
		Link:     r.Link,
		Original: r.Original,
		Kind:     r.Kind,
		Line:     r.Line,
		Locator:  r.Locator.String(),
		Start:    r.Locator.Start,
		End:      r.Locator.End,
	}
	if r.Locator.IsNode() {
		node := r.Locator.Node
		jr.Node = &node
		if r.Locator.Link != core.NoLink {
			link := r.Locator.Link
			jr.LinkIndex = &link
		}
	}
	return jr
}

func printQueryJSON(w io.Writer, target string, backlinks []core.Backlink) error {
	out := queryJSONOutput{Target: target, Backlinks: make([]jsonBacklink, len(backlinks))}
	for i, b := range backlinks {
		jb := jsonBacklink{Source: b.Source, References: make([]jsonReference, len(b.References))}
		for j, r := range b.References {
			jb.References[j] = toJSONReference(r)
		}
		out.Backlinks[i] = jb
	}
	return encodeJSON(w, out)
}

func printQueryText(w io.Writer, target string, backlinks []core.Backlink) error {
	refs := 0
	for _, b := range backlinks {
		refs += len(b.References)
	}
	fmt.Fprintf(w, "%s: %s sources, %s references\n",
		target, humanize.Comma(int64(len(backlinks))), humanize.Comma(int64(refs)))
	for _, b := range backlinks {
		fmt.Fprintf(w, "- %s\n", b.Source)
		for _, r := range b.References {
			if r.Line > 0 {
				fmt.Fprintf(w, "  - L%d %s %s %s\n", r.Line, r.Locator, r.Kind, r.Original)
			} else {
				fmt.Fprintf(w, "  - %s %s %s\n", r.Locator, r.Kind, r.Original)
			}
		}
	}
	return nil
}

// --- Stats output ---

func statsValues(r *core.StatsResult) map[string]int {
	return map[string]int{
		"documents_total":  r.DocumentsTotal,
		"sources_total":    r.SourcesTotal,
		"targets_total":    r.TargetsTotal,
		"edges_total":      r.EdgesTotal,
		"references_total": r.ReferencesTotal,
		"dangling_total":   r.DanglingTotal,
		"pending_total":    r.PendingTotal,
	}
}

func printStatsJSON(w io.Writer, r *core.StatsResult, fields []string) error {
	show := fieldSet(fields, core.StatsFields)
	values := statsValues(r)
	m := make(map[string]int)
	for _, f := range core.StatsFields {
		if show[f] {
			m[f] = values[f]
		}
	}
	return encodeJSON(w, m)
}

func printStatsText(w io.Writer, r *core.StatsResult, fields []string) error {
	show := fieldSet(fields, core.StatsFields)
	values := statsValues(r)
	for _, f := range core.StatsFields {
		if show[f] {
			fmt.Fprintf(w, "%s: %s\n", f, humanize.Comma(int64(values[f])))
		}
	}
	return nil
}

// --- Diagnose output ---

type diagnoseJSONConflict struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

type diagnoseJSONDangling struct {
	Source string `json:"source"`
	Link   string `json:"link"`
	Line   int    `json:"line"`
}

func invariantStatus(r *core.DiagnoseResult) string {
	if r.Invariant == "" {
		return "ok"
	}
	return r.Invariant
}

func printDiagnoseJSON(w io.Writer, r *core.DiagnoseResult, fields []string) error {
	show := fieldSet(fields, core.DiagnoseFields)
	m := make(map[string]any)
	if show["invariant"] {
		m["invariant"] = invariantStatus(r)
	}
	if show["basename_conflicts"] {
		conflicts := make([]diagnoseJSONConflict, len(r.BasenameConflicts))
		for i, c := range r.BasenameConflicts {
			conflicts[i] = diagnoseJSONConflict{Name: c.Name, Paths: c.Paths}
		}
		m["basename_conflicts"] = conflicts
	}
	if show["dangling"] {
		dangling := make([]diagnoseJSONDangling, len(r.Dangling))
		for i, d := range r.Dangling {
			dangling[i] = diagnoseJSONDangling{Source: d.Source, Link: d.Link, Line: d.Line}
		}
		m["dangling"] = dangling
	}
	if show["mismatches"] {
		if r.Mismatches != nil {
			m["mismatches"] = r.Mismatches
		} else {
			m["mismatches"] = []string{}
		}
	}
	return encodeJSON(w, m)
}

func printDiagnoseText(w io.Writer, r *core.DiagnoseResult, fields []string) error {
	show := fieldSet(fields, core.DiagnoseFields)
	if show["invariant"] {
		fmt.Fprintf(w, "invariant: %s\n", invariantStatus(r))
	}
	if show["basename_conflicts"] {
		fmt.Fprintln(w, "basename_conflicts:")
		for _, c := range r.BasenameConflicts {
			fmt.Fprintf(w, "- name: %s\n", c.Name)
			fmt.Fprintln(w, "  paths:")
			for _, p := range c.Paths {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		}
	}
	if show["dangling"] {
		fmt.Fprintln(w, "dangling:")
		for _, d := range r.Dangling {
			fmt.Fprintf(w, "- source: %s\n", d.Source)
			fmt.Fprintf(w, "  line: %d\n", d.Line)
			fmt.Fprintf(w, "  link: %s\n", d.Link)
		}
	}
	if show["mismatches"] {
		fmt.Fprintln(w, "mismatches:")
		for _, t := range r.Mismatches {
			fmt.Fprintf(w, "- %s\n", t)
		}
	}
	return nil
}
