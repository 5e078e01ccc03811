package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global collectors, registered on the default registry through promauto.
// Every series carries the index name so several indexes can share a
// process.

var (
	// InsertsTotal counts inserted vectors.
	InsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorann_inserts_total",
			Help: "Total number of vectors inserted",
		},
		[]string{"index_name"},
	)

	// SearchesTotal counts completed searches.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorann_searches_total",
			Help: "Total number of searches served",
		},
		[]string{"index_name"},
	)

	// SearchDistanceEvaluations tracks how many metric calls a search needs,
	// which is the main cost driver of HNSW queries.
	SearchDistanceEvaluations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorann_search_distance_evaluations",
			Help:    "Distance evaluations per search",
			Buckets: prometheus.ExponentialBuckets(16, 2, 12),
		},
		[]string{"index_name"},
	)

	// InsertDuration measures insert calls. A batch is one observation.
	InsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "kektorann_insert_duration_seconds",
			Help: "Duration of insert calls in seconds",
			// From a single small insert up to large batches.
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"index_name"},
	)

	// SearchDuration measures search calls.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorann_search_duration_seconds",
			Help:    "Duration of searches in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"index_name"},
	)

	// TotalVectors tracks the number of indexed vectors.
	TotalVectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kektorann_vectors_total",
			Help: "Total number of indexed vectors",
		},
		[]string{"index_name"},
	)

	// GraphTopLevel tracks the highest populated level of the graph.
	GraphTopLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kektorann_graph_top_level",
			Help: "Highest populated level of the HNSW graph",
		},
		[]string{"index_name"},
	)
)
