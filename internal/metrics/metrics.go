package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PartsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "granulestore_parts_written_total",
			Help: "Total number of data parts written",
		},
		[]string{"part_type"}, // Wide, Compact
	)

	MarksWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "granulestore_marks_written_total",
			Help: "Total number of marks written, including final marks",
		},
		[]string{"granularity"}, // constant, adaptive
	)

	RowsPerGranule = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "granulestore_rows_per_granule",
		Help:    "Rows in each data granule written",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	GranularityOptimized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "granulestore_granularity_optimized_total",
		Help: "Adaptive granularity tables collapsed into constant tables",
	})

	MergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "granulestore_merges_total",
			Help: "Total number of merges",
		},
		[]string{"result"}, // success, failure
	)

	MergedRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "granulestore_merged_rows_total",
		Help: "Rows written by merges",
	})
)

func init() {
	prometheus.MustRegister(PartsWritten, MarksWritten, RowsPerGranule, GranularityOptimized, MergesTotal, MergedRows)
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
