package casework

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// actionsTotal counts recorded actions by action and result
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amldesk_case_actions_total",
		Help: "Case actions by action and result",
	}, []string{"action", "result"})

	// actionDuration tracks the fetch-patch round trip
	actionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amldesk_case_action_duration_seconds",
		Help:    "Case action duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})
)
