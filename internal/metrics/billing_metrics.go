package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Purchase flow metrics
	PurchaseOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subs_bridge_purchase_outcomes_total",
			Help: "Total number of resolved purchase flows by outcome",
		},
		[]string{"outcome"}, // acknowledged, success, cancelled, failed, ack_failed, lookup_failed, in_progress, timed_out, not_ready
	)

	UnmatchedCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subs_bridge_unmatched_completions_total",
			Help: "Total number of purchase completions that arrived with no pending purchase",
		},
	)

	// Remote verification metrics
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subs_bridge_verifications_total",
			Help: "Total number of remote expiry verifications by result",
		},
		[]string{"result"},
	)

	VerificationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subs_bridge_verification_duration_seconds",
			Help:    "Duration of remote expiry verification round trips",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Bridge metrics
	BridgeResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subs_bridge_responses_total",
			Help: "Total number of bridge responses by operation and response code",
		},
		[]string{"operation", "code"},
	)
)

// RecordPurchaseOutcome records a terminal purchase flow outcome.
func RecordPurchaseOutcome(outcome string) {
	PurchaseOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordUnmatchedCompletion records a completion with no pending purchase.
func RecordUnmatchedCompletion() {
	UnmatchedCompletionsTotal.Inc()
}

// RecordVerification records a verification round trip.
func RecordVerification(ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	VerificationsTotal.WithLabelValues(result).Inc()
	VerificationDurationSeconds.Observe(elapsed.Seconds())
}

// RecordBridgeResponse records the response code of a bridge operation.
func RecordBridgeResponse(operation string, code int) {
	BridgeResponsesTotal.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}
