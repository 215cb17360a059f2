package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus метрики вызовов операций
var (
	promOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_connector_operations_total",
			Help: "Total number of connector operation invocations",
		},
		[]string{"service", "operation", "status"},
	)
	promOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "files_connector_operation_duration_seconds",
			Help:    "Connector operation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "operation"},
	)
)

func init() {
	prometheus.MustRegister(promOperations)
	prometheus.MustRegister(promOperationDuration)
}
