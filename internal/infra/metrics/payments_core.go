package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(paymentTransitions, paidRevenue) }

var (
	paymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transitions_total",
			Help:      "Committed payment status changes by previous and new status.",
		},
		[]string{"from", "to"},
	)

	// Amounts are in the smallest currency unit the payment row stores.
	paidRevenue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_amount_total",
			Help:      "Sum of amounts of payments that became paid, by currency and payment type.",
		},
		[]string{"currency", "type"},
	)
)

func IncPaymentTransition(from, to string) {
	paymentTransitions.WithLabelValues(norm(from), norm(to)).Inc()
}

func AddPaidAmount(currency, paymentType string, amount int64) {
	if amount <= 0 {
		return
	}
	paidRevenue.WithLabelValues(norm(currency), norm(paymentType)).Add(float64(amount))
}
