// Package metrics exposes Prometheus instrumentation for the serving pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total serving requests partitioned by flow and outcome
	servingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_requests_total",
			Help: "Total number of ad serving requests processed",
		},
		[]string{"flow", "outcome"},
	)

	// Eligible candidate counts surviving the filter pipeline
	eligibleAds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serving_eligible_ads",
			Help:    "Number of eligible ads remaining after filtering",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"flow"},
	)

	// Ads excluded by each exclusion rule
	excludedAdsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_excluded_ads_total",
			Help: "Total number of candidate ads excluded, by rule",
		},
		[]string{"rule"},
	)
)

// Flow label values
const (
	FlowSegments   = "segments"
	FlowPrediction = "prediction"
)

// Outcome label values
const (
	OutcomeAllowed    = "allowed"
	OutcomeNotAllowed = "not_allowed"
	OutcomeError      = "error"
)

// RecordServingRequest counts one serving request
func RecordServingRequest(flow, outcome string) {
	servingRequestsTotal.WithLabelValues(flow, outcome).Inc()
}

// ObserveEligibleAds records how many candidates survived filtering
func ObserveEligibleAds(flow string, count int) {
	eligibleAds.WithLabelValues(flow).Observe(float64(count))
}

// RecordExclusion counts one candidate excluded by the named rule
func RecordExclusion(rule string) {
	excludedAdsTotal.WithLabelValues(rule).Inc()
}
