package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelter_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelter_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	DonationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelter_donations_created_total",
		Help: "Donations written to the ledger, labeled by target and initial status",
	}, []string{"target", "status"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelter_reconciliations_total",
		Help: "Aggregate fan-out attempts, labeled by action (apply, revert) and result",
	}, []string{"action", "result"})
)
