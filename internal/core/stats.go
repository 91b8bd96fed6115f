package core

import (
	"fmt"
	"slices"
)

// StatsOptions controls which fields to return.
type StatsOptions struct {
	Fields []string // nil/empty = all
}

// StatsResult contains link graph statistics.
type StatsResult struct {
	DocumentsTotal  int
	SourcesTotal    int
	TargetsTotal    int
	EdgesTotal      int
	ReferencesTotal int
	DanglingTotal   int
	PendingTotal    int
}

// StatsFields lists the valid field names in output order.
var StatsFields = []string{
	"documents_total",
	"sources_total",
	"targets_total",
	"edges_total",
	"references_total",
	"dangling_total",
	"pending_total",
}

// ValidateStatsFields rejects unknown field names.
func ValidateStatsFields(fields []string) error {
	for _, f := range fields {
		if !slices.Contains(StatsFields, f) {
			return fmt.Errorf("unknown stats field: %s", f)
		}
	}
	return nil
}

// Stats returns aggregate statistics for the service's link graph.
func Stats(svc *Service, opts StatsOptions) (*StatsResult, error) {
	if err := ValidateStatsFields(opts.Fields); err != nil {
		return nil, err
	}
	st := svc.Stats()
	result := &StatsResult{}
	if isFieldActive("documents_total", opts.Fields) {
		result.DocumentsTotal = len(svc.resolver.Under(""))
	}
	if isFieldActive("sources_total", opts.Fields) {
		result.SourcesTotal = st.Graph.Sources
	}
	if isFieldActive("targets_total", opts.Fields) {
		result.TargetsTotal = st.Graph.Targets
	}
	if isFieldActive("edges_total", opts.Fields) {
		result.EdgesTotal = st.Graph.Edges
	}
	if isFieldActive("references_total", opts.Fields) {
		result.ReferencesTotal = st.Graph.References
	}
	if isFieldActive("dangling_total", opts.Fields) {
		result.DanglingTotal = st.Graph.Dangling
	}
	if isFieldActive("pending_total", opts.Fields) {
		result.PendingTotal = st.Pending
	}
	return result, nil
}

// isFieldActive returns true if the field is requested (or if fields is empty, meaning all).
func isFieldActive(field string, fields []string) bool {
	return len(fields) == 0 || slices.Contains(fields, field)
}
