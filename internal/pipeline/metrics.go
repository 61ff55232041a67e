package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echovault",
			Name:      "submissions_total",
			Help:      "Submission and resolution outcomes by status.",
		},
		[]string{"status"},
	)

	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echovault",
			Name:      "enrichments_total",
			Help:      "Background enrichment write-backs by outcome (enriched, fallback, stranded).",
		},
		[]string{"outcome"},
	)

	enrichDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "echovault",
			Name:      "enrichment_duration_seconds",
			Help:      "Time from entry save to enrichment write-back.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// observe counts a finished Submit or resolution and passes its values through.
func observe(res Result, err error) (Result, error) {
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		return res, err
	}
	submissionsTotal.WithLabelValues(string(res.Status)).Inc()
	return res, nil
}
