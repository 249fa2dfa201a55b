// Package metrics exposes Prometheus counters and histograms for
// submission outcomes and repository call latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dss_messages_received_total",
			Help: "Total number of messages received from the input queue",
		},
		[]string{"queue"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dss_submissions_total",
			Help: "Total number of submissions processed, by result type",
		},
		[]string{"result_type"},
	)

	submissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dss_submission_duration_seconds",
			Help:    "Time to process one submission message end to end",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"result_type"},
	)

	repositoryCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dss_repository_call_duration_seconds",
			Help:    "Repository REST API call latency",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dss_compensations_total",
			Help: "Total number of rollback compensations triggered by a failed bitstream",
		},
		[]string{"outcome"},
	)

	haltsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dss_halts_total",
			Help: "Total number of times the message loop halted, by policy",
		},
		[]string{"policy"},
	)
)

// RecordMessageReceived records one message pulled off queueName.
func RecordMessageReceived(queueName string) {
	messagesReceivedTotal.WithLabelValues(queueName).Inc()
}

// RecordSubmission records the outcome and wall-clock duration of one
// processed submission.
func RecordSubmission(resultType string, duration time.Duration) {
	submissionsTotal.WithLabelValues(resultType).Inc()
	submissionDuration.WithLabelValues(resultType).Observe(duration.Seconds())
}

// RecordRepositoryCall records the latency of one repository operation
// (e.g. "create_item", "attach_bitstream").
func RecordRepositoryCall(operation string, duration time.Duration) {
	repositoryCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCompensation records whether a rollback after a failed bitstream
// succeeded or itself failed.
func RecordCompensation(outcome string) {
	compensationsTotal.WithLabelValues(outcome).Inc()
}

// RecordHalt records that the loop stopped for operator attention under
// the given policy ("halt-report", "halt-silent", or "unclassified").
func RecordHalt(policy string) {
	haltsTotal.WithLabelValues(policy).Inc()
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
