package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsaarthi",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Model calls by capability and outcome.",
		},
		[]string{"capability", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsaarthi",
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Retried model call attempts.",
		},
		[]string{"capability"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsaarthi",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Wall time of model calls including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"capability"},
	)
)
