// Package metrics exposes Prometheus metrics for audit runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// auditsTotal counts finished audits by metric and status
	auditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairscan_audits_total",
		Help: "Total audits by metric and status",
	}, []string{"metric", "status"})

	// auditErrors counts audits that failed before producing a result
	auditErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairscan_audit_errors_total",
		Help: "Total failed audits by stage",
	}, []string{"stage"})

	// auditDuration tracks search time per audit
	auditDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fairscan_audit_duration_seconds",
		Help:    "Audit search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
	}, []string{"metric"})

	// visitedNodes tracks the size of the explored search tree
	visitedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fairscan_search_visited_nodes",
		Help:    "Search nodes expanded per audit",
		Buckets: prometheus.ExponentialBuckets(1, 10, 9),
	})

	// patternsFound tracks how many patterns an audit reports
	patternsFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fairscan_audit_patterns",
		Help:    "Patterns reported per audit",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 1000},
	})

	// auditsSkipped counts model files left alone because they did not change
	auditsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fairscan_audits_skipped_total",
		Help: "Total audits skipped for unchanged model files",
	})
)

// ObserveAudit records one finished audit.
func ObserveAudit(metric, status string, elapsed time.Duration, visited, patterns int) {
	auditsTotal.WithLabelValues(metric, status).Inc()
	auditDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
	visitedNodes.Observe(float64(visited))
	patternsFound.Observe(float64(patterns))
}

// ObserveError records an audit that failed at stage (load, validate, search, store).
func ObserveError(stage string) {
	auditErrors.WithLabelValues(stage).Inc()
}

// ObserveSkip records an unchanged model file.
func ObserveSkip() {
	auditsSkipped.Inc()
}
