// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RankingsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_runs_completed_total",
			Help: "Total number of completed ranking runs",
		},
		[]string{"outcome"},
	)

	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "ranking_run_duration_seconds",
			Help: "Duration of ranking runs in seconds",
		},
	)

	VendorsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_vendors_evaluated_total",
			Help: "Total number of vendor evaluations performed",
		},
	)

	MLPredictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_ml_predictions_total",
			Help: "ML prediction call outcomes",
		},
		[]string{"outcome"},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranking_ml_breaker_state",
			Help: "ML circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	DegradedRankings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_runs_degraded_total",
			Help: "Ranking runs completed in degraded (rule-only) mode",
		},
	)

	Abstentions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_abstentions_total",
			Help: "Rankings withheld because confidence fell below the abstention threshold",
		},
	)
)
