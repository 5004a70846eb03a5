package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		provisioningSteps,
		subscriptionsActivatedTotal,
	)
}

var (
	provisioningSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_steps_total",
			Help:      "Side effects run after payment, by step and result (ok/failed/skipped).",
		},
		[]string{"step", "result"},
	)

	subscriptionsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_activated_total",
			Help:      "Total number of subscriptions activated or refreshed by paid payments.",
		},
	)
)

func IncProvisioningStep(step, result string) {
	provisioningSteps.WithLabelValues(norm(step), norm(result)).Inc()
}

func IncSubscriptionsActivated() {
	subscriptionsActivatedTotal.Inc()
}
