package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookCallsTotal,
		webhookAuthFailures,
	)
}

var (
	webhookCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_calls_total",
			Help: "Inbound gateway/bot callbacks by route and result (applied/replayed/error).",
		},
		[]string{"route", "result"},
	)

	webhookAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_auth_failures_total",
			Help: "Inbound callbacks rejected for a bad shared secret.",
		},
	)
)

func IncWebhook(route, result string) {
	webhookCallsTotal.WithLabelValues(norm(route), norm(result)).Inc()
}

func IncWebhookAuthFailure() {
	webhookAuthFailures.Inc()
}
