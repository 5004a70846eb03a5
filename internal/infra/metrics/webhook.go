package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookRequests,
		webhookDuration,
	)
}

var (
	// result: ok|fail
	// reason (fail only): bad_json|invalid_signature|not_found|persistence|locked|timeout
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Count of payment webhook deliveries by result and reason.",
		},
		[]string{"result", "reason"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Duration of the payment webhook handler in seconds.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func ObserveWebhook(result, reason string, took time.Duration) {
	webhookRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	webhookDuration.WithLabelValues(norm(result)).Observe(took.Seconds())
}
