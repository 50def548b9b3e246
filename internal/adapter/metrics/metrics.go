package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceMetrics holds all Prometheus metrics for the log store service.
type ServiceMetrics struct {
	IngestTotal     *prometheus.CounterVec
	RecentTotal     *prometheus.CounterVec
	BytesTotal      prometheus.Counter
	StorageDuration *prometheus.HistogramVec
	StorageErrors   *prometheus.CounterVec
}

// NewServiceMetrics creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	factory := promauto.With(reg)
	return &ServiceMetrics{
		IngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstore",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of ingest requests by outcome.",
		}, []string{"status"}), // status: accepted, invalid, too_large, error
		RecentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstore",
			Subsystem: "recent",
			Name:      "requests_total",
			Help:      "Total number of recent-records requests by outcome.",
		}, []string{"status"}), // status: ok, error
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logstore",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of request body bytes accepted for ingestion.",
		}),
		StorageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logstore",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Latency of storage engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstore",
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Storage engine failures by operation and error class.",
		}, []string{"operation", "class"}), // class: unavailable, rejected, other
	}
}
