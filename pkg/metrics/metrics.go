// Package metrics exposes Prometheus counters for the RPC surface and
// the background maintenance jobs.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smpit",
		Name:      "requests_total",
		Help:      "RPC requests by operation and HTTP status.",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smpit",
		Name:      "request_duration_seconds",
		Help:      "RPC request latency by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smpit",
		Name:      "job_runs_total",
		Help:      "Background job executions by job name.",
	}, []string{"job"})

	jobDeletedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smpit",
		Name:      "job_deleted_rows_total",
		Help:      "Rows removed by background cleanup jobs.",
	}, []string{"job"})
)

// ObserveRequest records one RPC call.
func ObserveRequest(operation string, status int, seconds float64) {
	requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveJob records one background job run and the rows it removed.
func ObserveJob(job string, deleted int64) {
	jobRunsTotal.WithLabelValues(job).Inc()
	if deleted > 0 {
		jobDeletedRows.WithLabelValues(job).Add(float64(deleted))
	}
}
