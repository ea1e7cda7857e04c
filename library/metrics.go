package library

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shutter_library_operations_total",
			Help: "Total number of library operations",
		},
		[]string{"operation", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shutter_library_operation_duration_seconds",
			Help:    "Duration of library operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	blobBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shutter_library_blob_bytes_written_total",
			Help: "Total photo bytes written to the blob store",
		},
	)

	indexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutter_library_index_entries",
			Help: "Current number of entries in the photo index",
		},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(blobBytesWritten)
	prometheus.MustRegister(indexEntries)
}

// observe records a completed operation with its latency and status
func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	operationsTotal.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
