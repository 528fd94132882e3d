package formfill_exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts finished operations by kind and outcome.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formfill_export_operations_total",
			Help: "Export operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// operationDuration is the wall time of finished operations.
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formfill_export_operation_duration_seconds",
			Help:    "Duration of export operations in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	candidateAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formfill_export_candidate_attempts_total",
			Help: "Download attempts against candidate routes by outcome",
		},
		[]string{"outcome"},
	)

	pagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formfill_export_pages_total",
			Help: "Exported pages by delivery action",
		},
		[]string{"action"},
	)

	cleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formfill_export_cleanup_failures_total",
			Help: "Temporary files that could not be removed",
		},
	)
)

// outcomeLabel maps an operation result onto a metric label.
func outcomeLabel(res *ExportResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case res != nil && res.Cancelled:
		return "cancelled"
	default:
		return "success"
	}
}
