package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesTotal,
		purchaseTransitionsTotal,
		purchaseConflictsTotal,
		purchaseRevenueTotal,
		pendingReviewQueue,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchases created, labeled by item type.",
		},
		[]string{"item_type"},
	)

	purchaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_transitions_total",
			Help: "Purchase status transitions by target status and actor (user/admin/bot).",
		},
		[]string{"to", "actor"},
	)

	purchaseConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_conflicts_total",
			Help: "Conditional updates that lost the race, by operation.",
		},
		[]string{"operation"},
	)

	purchaseRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_revenue_total",
			Help: "Total monetary value of completed purchases, labeled by currency.",
		},
		[]string{"currency"},
	)

	pendingReviewQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "purchase_pending_review",
			Help: "Purchases currently awaiting admin verification.",
		},
	)
)

func IncPurchase(itemType string) {
	purchasesTotal.WithLabelValues(norm(itemType)).Inc()
}

func IncTransition(to, actor string) {
	purchaseTransitionsTotal.WithLabelValues(norm(to), norm(actor)).Inc()
}

func IncConflict(operation string) {
	purchaseConflictsTotal.WithLabelValues(norm(operation)).Inc()
}

func AddRevenue(currency string, amount int64) {
	purchaseRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func SetPendingReview(n int) {
	pendingReviewQueue.Set(float64(n))
}
