package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// drainTotal counts non-empty reconciliation passes.
	drainTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backlinks_drain_total",
		Help: "Total non-empty reconciliation passes",
	})

	// drainDuration tracks how long a reconciliation pass takes.
	drainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backlinks_drain_duration_seconds",
		Help:    "Reconciliation pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	})

	// actionTotal counts applied actions by action and result.
	actionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backlinks_action_total",
		Help: "Applied pending actions by action and result",
	}, []string{"action", "result"})

	// pendingActions tracks the number of paths awaiting reconciliation.
	pendingActions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backlinks_pending_actions",
		Help: "Paths awaiting reconciliation",
	})

	// queryTotal counts backlink queries by mode.
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backlinks_query_total",
		Help: "Backlink queries by mode",
	}, []string{"mode"})

	// safeQueryTimeouts counts consistent queries that hit their deadline.
	safeQueryTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backlinks_safe_query_timeouts_total",
		Help: "Consistent queries that timed out waiting for pending actions",
	})

	// canvasParseFailures counts malformed container documents.
	canvasParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backlinks_canvas_parse_failures_total",
		Help: "Container documents that could not be parsed",
	})

	// graphEdges and graphReferences track the index size after each pass.
	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backlinks_graph_edges",
		Help: "Distinct source-target edges in the link graph",
	})
	graphReferences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backlinks_graph_references",
		Help: "References held in the backward index",
	})
)

// recordGraphSize publishes the current index size.
func recordGraphSize(st GraphStats) {
	graphEdges.Set(float64(st.Edges))
	graphReferences.Set(float64(st.References))
}
