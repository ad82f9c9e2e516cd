// Package metrics exposes Prometheus collectors for log operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for every operation.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicelogs",
		Name:      "operations_total",
		Help:      "Log operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "servicelogs",
		Name:      "operation_duration_seconds",
		Help:      "Latency of log operations including storage I/O.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// Observe records one finished operation.
func Observe(operation, outcome string, start time.Time) {
	operations.WithLabelValues(operation, outcome).Inc()
	duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
