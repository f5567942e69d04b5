package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		fulfillmentsTotal,
		fulfillmentPartialTotal,
		notificationsTotal,
	)
}

var (
	fulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillments_total",
			Help: "Library grants executed after purchase completion, by item type and outcome.",
		},
		[]string{"item_type", "outcome"},
	)

	fulfillmentPartialTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_partial_total",
			Help: "Bundle grants that left delivery incomplete and need reconciliation.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Best-effort notifications by channel (email/telegram) and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

func IncFulfillment(itemType string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	fulfillmentsTotal.WithLabelValues(norm(itemType), outcome).Inc()
}

func IncPartialFulfillment() {
	fulfillmentPartialTotal.Inc()
}

func IncNotification(channel string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	notificationsTotal.WithLabelValues(norm(channel), outcome).Inc()
}
