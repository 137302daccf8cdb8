package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeDegenerate  = "degenerate"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

var (
	MatchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "organmatch",
			Name:      "match_queries_total",
			Help:      "Total number of match queries by outcome",
		},
		[]string{"outcome"},
	)

	MatchQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "organmatch",
			Name:      "match_query_duration_seconds",
			Help:      "Neighbor search duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	CompatibilityScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "organmatch",
			Name:      "compatibility_score",
			Help:      "Distribution of returned compatibility scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	IndexRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "organmatch",
			Name:      "index_records",
			Help:      "Number of reference records loaded",
		},
	)
)

func init() {
	prometheus.MustRegister(MatchQueriesTotal)
	prometheus.MustRegister(MatchQueryDuration)
	prometheus.MustRegister(CompatibilityScores)
	prometheus.MustRegister(IndexRecords)
}

// ObserveMatch records one match query.
func ObserveMatch(outcome string, started time.Time) {
	MatchQueriesTotal.WithLabelValues(outcome).Inc()
	MatchQueryDuration.Observe(time.Since(started).Seconds())
}
