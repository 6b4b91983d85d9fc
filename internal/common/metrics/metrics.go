// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_predictions_total",
			Help: "Total number of prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	PredictionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_prediction_latency_seconds",
			Help: "Latency of prediction service calls in seconds",
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	ScoringRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_scoring_runs_total",
			Help: "Total number of scoring runs by result",
		},
		[]string{"result"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_scoring_duration_seconds",
			Help: "Duration of a full ranking pass in seconds",
		},
	)

	RecommendationsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_recommendations_returned",
			Help:    "Number of recommendations returned per scoring run",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	AutomationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_automation_decisions_total",
			Help: "Automation routing decisions by level and escalation",
		},
		[]string{"level", "escalated"},
	)
)
