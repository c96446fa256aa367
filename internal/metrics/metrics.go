// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// SalesTotal counts sale attempts by outcome: created or the error kind.
	SalesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Sale attempts by outcome",
		},
		[]string{"outcome"},
	)

	LoyaltyCreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_loyalty_credits_total",
			Help: "Post-commit loyalty credits by status",
		},
		[]string{"status"},
	)

	LoyaltyMaintenanceProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_loyalty_maintenance_processed_total",
			Help: "Ledger rows written by loyalty maintenance jobs",
		},
		[]string{"job"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SalesTotal,
			LoyaltyCreditsTotal,
			LoyaltyMaintenanceProcessed,
		)
	})
}
