package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts HTTP requests by route and status code
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// pairsScored counts synchronously scored graph pairs by solver
	pairsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smatch",
		Subsystem: "score",
		Name:      "pairs_total",
		Help:      "Graph pairs scored through the synchronous endpoint",
	}, []string{"solver"})

	// boundGap is the distribution of upper minus lower solver bound
	boundGap = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "smatch",
		Subsystem: "score",
		Name:      "bound_gap",
		Help:      "Gap between the upper and lower alignment bound per pair",
		Buckets:   []float64{0, 0.5, 1, 2, 5, 10, 25, 50},
	})

	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smatch",
		Subsystem: "jobs",
		Name:      "submitted_total",
		Help:      "Corpus scoring jobs accepted",
	})
)
